package iam

import (
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
)

// IAMBinding represents a single "what role on which resource" permission.
type IAMBinding struct {
	ResourceType string
	ResourceID   string
	Role         string
}

// ServiceAccountSpec declares a service identity and the project roles it holds.
type ServiceAccountSpec struct {
	AccountID    string
	DisplayName  string
	ProjectRoles []string
}

// RolePlanner derives resource-level bindings from the declared cloud resources.
type RolePlanner struct {
	logger zerolog.Logger
}

// NewRolePlanner creates a new planner.
func NewRolePlanner(logger zerolog.Logger) *RolePlanner {
	return &RolePlanner{
		logger: logger.With().Str("component", "RolePlanner").Logger(),
	}
}

// PlanBucketBindings grants object admin on every declared bucket, in declaration order.
func (p *RolePlanner) PlanBucketBindings(resources servicemanager.CloudResourcesSpec) []IAMBinding {
	bindings := make([]IAMBinding, 0, len(resources.GCSBuckets))
	for _, bucket := range resources.GCSBuckets {
		bindings = append(bindings, IAMBinding{
			ResourceType: ResourceGCSBucket,
			ResourceID:   bucket.Name,
			Role:         RoleStorageObjectAdmin,
		})
	}
	p.logger.Debug().Int("bindings", len(bindings)).Msg("Planned bucket bindings.")
	return bindings
}

// PlanDeadLetterBindings returns the grants the Pub/Sub service agent needs for each
// dead-lettered subscription: publish on the dead-letter topic and subscribe on the
// source subscription.
func (p *RolePlanner) PlanDeadLetterBindings(resources servicemanager.CloudResourcesSpec) []IAMBinding {
	var bindings []IAMBinding
	seenTopics := make(map[string]struct{})
	for _, sub := range resources.Subscriptions {
		if sub.DeadLetterPolicy == nil {
			continue
		}
		topic := sub.DeadLetterPolicy.DeadLetterTopic
		if _, ok := seenTopics[topic]; !ok {
			seenTopics[topic] = struct{}{}
			bindings = append(bindings, IAMBinding{ResourceType: ResourcePubSubTopic, ResourceID: topic, Role: RolePubSubPublisher})
		}
		bindings = append(bindings, IAMBinding{ResourceType: ResourcePubSubSubscription, ResourceID: sub.Name, Role: RolePubSubSubscriber})
	}
	p.logger.Debug().Int("bindings", len(bindings)).Msg("Planned dead letter bindings.")
	return bindings
}
