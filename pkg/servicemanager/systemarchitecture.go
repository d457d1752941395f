package servicemanager

import (
	"time"
)

// This file defines the resource specs the provisioners work from.

// Environment holds the project-level settings shared by every manager.
type Environment struct {
	ProjectID string
	Region    string
	Zone      string
	Labels    map[string]string
}

// CloudResourcesSpec is a container for all the cloud resources a deployment needs.
// Slices are processed in order.
type CloudResourcesSpec struct {
	Topics        []TopicConfig
	Subscriptions []SubscriptionConfig
	GCSBuckets    []GCSBucket
}

type CloudResource struct {
	Name               string
	Labels             map[string]string
	TeardownProtection bool
}

// TopicConfig defines the configuration for a Pub/Sub topic.
type TopicConfig struct {
	CloudResource
}

// SubscriptionConfig defines the configuration for a Pub/Sub subscription.
type SubscriptionConfig struct {
	CloudResource
	Topic              string
	AckDeadlineSeconds int
	MessageRetention   Duration
	RetryPolicy        *RetryPolicySpec
	DeadLetterPolicy   *DeadLetterPolicySpec
}

// RetryPolicySpec bounds the redelivery backoff of a subscription.
type RetryPolicySpec struct {
	MinimumBackoff Duration
	MaximumBackoff Duration
}

// DeadLetterPolicySpec forwards messages to DeadLetterTopic once they have been
// delivered MaxDeliveryAttempts times without an ack.
type DeadLetterPolicySpec struct {
	DeadLetterTopic     string
	MaxDeliveryAttempts int
}

// GCSBucket defines the configuration for a GCS bucket.
type GCSBucket struct {
	CloudResource
	Location                 string
	StorageClass             string
	UniformBucketLevelAccess bool
}

// Duration is a time.Duration that prints in its string form in resource specs and errors.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}
