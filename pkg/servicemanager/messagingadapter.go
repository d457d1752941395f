package servicemanager

import "context"

// MessagingTopic is the subset of a topic handle the managers need.
type MessagingTopic interface {
	ID() string
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}

// MessagingSubscription is the subset of a subscription handle the managers need.
type MessagingSubscription interface {
	ID() string
	Exists(ctx context.Context) (bool, error)
	Config(ctx context.Context) (*SubscriptionConfig, error)
	Delete(ctx context.Context) error
}

// MessagingClient abstracts a Pub/Sub client so managers can run against fakes.
type MessagingClient interface {
	Topic(id string) MessagingTopic
	Subscription(id string) MessagingSubscription
	CreateTopicWithConfig(ctx context.Context, topicSpec TopicConfig) (MessagingTopic, error)
	CreateSubscription(ctx context.Context, subSpec SubscriptionConfig) (MessagingSubscription, error)
	Validate(resources CloudResourcesSpec) error
	Close() error
}
