package servicemanager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

const (
	// Google Cloud Pub/Sub constraints define the valid ranges for certain settings.
	minAckDeadline         = 10 * time.Second
	maxAckDeadline         = 600 * time.Second
	minRetention           = 10 * time.Minute
	maxRetention           = 7 * 24 * time.Hour
	minDeliveryAttempts    = 5
	maxDeliveryAttempts    = 100
	defaultMinimumBackoff  = 10 * time.Second
	defaultMaximumBackoff  = 600 * time.Second
	topicResourceSeparator = "/topics/"
)

// --- Conversion Helpers ---

// topicIDFromName strips "projects/<p>/topics/" from a fully qualified topic name.
func topicIDFromName(name string) string {
	if i := strings.LastIndex(name, topicResourceSeparator); i != -1 {
		return name[i+len(topicResourceSeparator):]
	}
	return name
}

// fromGCPSubscriptionConfig converts a Google Pub/Sub subscription configuration
// into the generic SubscriptionConfig used by the managers.
func fromGCPSubscriptionConfig(id string, s *pubsub.SubscriptionConfig) *SubscriptionConfig {
	spec := &SubscriptionConfig{
		CloudResource: CloudResource{
			Name:   id,
			Labels: s.Labels,
		},
		AckDeadlineSeconds: int(s.AckDeadline.Seconds()),
		MessageRetention:   Duration(s.RetentionDuration),
	}
	if s.Topic != nil {
		spec.Topic = s.Topic.ID()
	}

	minimumBackoff := defaultMinimumBackoff
	maximumBackoff := defaultMaximumBackoff
	// RetryPolicy is optional and its backoff fields are optional.Duration values.
	if s.RetryPolicy != nil {
		if d, ok := s.RetryPolicy.MinimumBackoff.(time.Duration); ok {
			minimumBackoff = d
		}
		if d, ok := s.RetryPolicy.MaximumBackoff.(time.Duration); ok {
			maximumBackoff = d
		}
	}
	spec.RetryPolicy = &RetryPolicySpec{
		MinimumBackoff: Duration(minimumBackoff),
		MaximumBackoff: Duration(maximumBackoff),
	}

	if s.DeadLetterPolicy != nil {
		spec.DeadLetterPolicy = &DeadLetterPolicySpec{
			DeadLetterTopic:     topicIDFromName(s.DeadLetterPolicy.DeadLetterTopic),
			MaxDeliveryAttempts: s.DeadLetterPolicy.MaxDeliveryAttempts,
		}
	}
	return spec
}

// --- Adapter Implementations ---

// gcpTopicAdapter wraps a *pubsub.Topic to satisfy the MessagingTopic interface.
type gcpTopicAdapter struct{ topic *pubsub.Topic }

func (a *gcpTopicAdapter) ID() string                               { return a.topic.ID() }
func (a *gcpTopicAdapter) Exists(ctx context.Context) (bool, error) { return a.topic.Exists(ctx) }
func (a *gcpTopicAdapter) Delete(ctx context.Context) error         { return a.topic.Delete(ctx) }

// gcpSubscriptionAdapter wraps a *pubsub.Subscription to satisfy the MessagingSubscription interface.
type gcpSubscriptionAdapter struct{ sub *pubsub.Subscription }

func (a *gcpSubscriptionAdapter) ID() string                               { return a.sub.ID() }
func (a *gcpSubscriptionAdapter) Exists(ctx context.Context) (bool, error) { return a.sub.Exists(ctx) }
func (a *gcpSubscriptionAdapter) Delete(ctx context.Context) error         { return a.sub.Delete(ctx) }

// Config fetches the current configuration of the subscription.
func (a *gcpSubscriptionAdapter) Config(ctx context.Context) (*SubscriptionConfig, error) {
	gcpConfig, err := a.sub.Config(ctx)
	if err != nil {
		return nil, err
	}
	return fromGCPSubscriptionConfig(a.sub.ID(), &gcpConfig), nil
}

// gcpMessagingClientAdapter wraps a *pubsub.Client to satisfy the MessagingClient interface.
type gcpMessagingClientAdapter struct{ client *pubsub.Client }

func (a *gcpMessagingClientAdapter) Topic(id string) MessagingTopic {
	return &gcpTopicAdapter{topic: a.client.Topic(id)}
}

func (a *gcpMessagingClientAdapter) Subscription(id string) MessagingSubscription {
	return &gcpSubscriptionAdapter{sub: a.client.Subscription(id)}
}

func (a *gcpMessagingClientAdapter) CreateTopicWithConfig(ctx context.Context, topicSpec TopicConfig) (MessagingTopic, error) {
	gcpConfig := &pubsub.TopicConfig{
		Labels: topicSpec.Labels,
	}
	t, err := a.client.CreateTopicWithConfig(ctx, topicSpec.Name, gcpConfig)
	if err != nil {
		return nil, err
	}
	return &gcpTopicAdapter{topic: t}, nil
}

func (a *gcpMessagingClientAdapter) CreateSubscription(ctx context.Context, subSpec SubscriptionConfig) (MessagingSubscription, error) {
	// The MessagingManager has already checked that both topics exist.
	topic := a.client.Topic(subSpec.Topic)

	gcpConfig := pubsub.SubscriptionConfig{
		Topic:             topic,
		Labels:            subSpec.Labels,
		RetentionDuration: time.Duration(subSpec.MessageRetention),
	}
	if subSpec.AckDeadlineSeconds > 0 {
		gcpConfig.AckDeadline = time.Duration(subSpec.AckDeadlineSeconds) * time.Second
	}
	if subSpec.RetryPolicy != nil {
		gcpConfig.RetryPolicy = &pubsub.RetryPolicy{
			MinimumBackoff: time.Duration(subSpec.RetryPolicy.MinimumBackoff),
			MaximumBackoff: time.Duration(subSpec.RetryPolicy.MaximumBackoff),
		}
	}
	if subSpec.DeadLetterPolicy != nil {
		gcpConfig.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			// The API wants the fully qualified name, e.g. projects/p/topics/t.
			DeadLetterTopic:     a.client.Topic(subSpec.DeadLetterPolicy.DeadLetterTopic).String(),
			MaxDeliveryAttempts: subSpec.DeadLetterPolicy.MaxDeliveryAttempts,
		}
	}

	s, err := a.client.CreateSubscription(ctx, subSpec.Name, gcpConfig)
	if err != nil {
		return nil, err
	}
	return &gcpSubscriptionAdapter{sub: s}, nil
}

func (a *gcpMessagingClientAdapter) Close() error { return a.client.Close() }

// Validate checks the resource configuration against Google Pub/Sub specific rules.
func (a *gcpMessagingClientAdapter) Validate(resources CloudResourcesSpec) error {
	return ValidatePubSubLimits(resources)
}

// ValidatePubSubLimits checks subscription settings against the ranges Pub/Sub accepts.
func ValidatePubSubLimits(resources CloudResourcesSpec) error {
	for _, sub := range resources.Subscriptions {
		// If AckDeadlineSeconds is set, it must be within the allowed range.
		if sub.AckDeadlineSeconds != 0 {
			ackDuration := time.Duration(sub.AckDeadlineSeconds) * time.Second
			if ackDuration < minAckDeadline || ackDuration > maxAckDeadline {
				return fmt.Errorf("subscription '%s' has an invalid ack_deadline_seconds: %d. Must be between %d and %d",
					sub.Name, sub.AckDeadlineSeconds, int(minAckDeadline.Seconds()), int(maxAckDeadline.Seconds()))
			}
		}

		// If MessageRetention is set, it must be within the allowed range.
		if sub.MessageRetention != 0 {
			retentionDuration := time.Duration(sub.MessageRetention)
			if retentionDuration < minRetention || retentionDuration > maxRetention {
				return fmt.Errorf("subscription '%s' has an invalid message_retention: '%s'. Must be between '%s' and '%s'",
					sub.Name, retentionDuration, minRetention, maxRetention)
			}
		}

		if dlp := sub.DeadLetterPolicy; dlp != nil {
			if dlp.DeadLetterTopic == "" {
				return fmt.Errorf("subscription '%s' has a dead letter policy without a topic", sub.Name)
			}
			if dlp.DeadLetterTopic == sub.Topic {
				return fmt.Errorf("subscription '%s' cannot dead-letter into its own topic '%s'", sub.Name, sub.Topic)
			}
			if dlp.MaxDeliveryAttempts < minDeliveryAttempts || dlp.MaxDeliveryAttempts > maxDeliveryAttempts {
				return fmt.Errorf("subscription '%s' has an invalid max_delivery_attempts: %d. Must be between %d and %d",
					sub.Name, dlp.MaxDeliveryAttempts, minDeliveryAttempts, maxDeliveryAttempts)
			}
		}
	}

	return nil
}

// --- Factory Functions ---

// MessagingClientFromPubsubClient wraps a concrete *pubsub.Client to satisfy the MessagingClient interface.
func MessagingClientFromPubsubClient(client *pubsub.Client) MessagingClient {
	if client == nil {
		return nil
	}
	return &gcpMessagingClientAdapter{client: client}
}
