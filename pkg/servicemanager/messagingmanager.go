package servicemanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// MessagingManager handles the creation, verification and deletion of Pub/Sub topics and subscriptions.
// It drives these operations through the MessagingClient interface.
type MessagingManager struct {
	client      MessagingClient
	logger      zerolog.Logger
	environment Environment
}

// NewMessagingManager creates a new manager for orchestrating Pub/Sub resources.
func NewMessagingManager(client MessagingClient, logger zerolog.Logger, environment Environment) (*MessagingManager, error) {
	if client == nil {
		return nil, errors.New("messaging client (MessagingClient interface) cannot be nil")
	}
	return &MessagingManager{
		client:      client,
		logger:      logger.With().Str("subcomponent", "MessagingManager").Logger(),
		environment: environment,
	}, nil
}

// CreateResources reconciles topics in order, then subscriptions in order.
// Existing resources are reported as AlreadyExists and left untouched. The first
// failure stops the remaining work; its outcome is the last element of the slice.
func (m *MessagingManager) CreateResources(ctx context.Context, resources CloudResourcesSpec) ([]Outcome, error) {
	m.logger.Info().Msg("Starting Pub/Sub setup...")

	if err := m.client.Validate(resources); err != nil {
		m.logger.Error().Err(err).Msg("Resource configuration failed validation")
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(resources.Topics)+len(resources.Subscriptions))

	m.logger.Info().Int("count", len(resources.Topics)).Msg("Processing topics...")
	for _, spec := range resources.Topics {
		outcome := m.ensureTopic(ctx, spec)
		outcomes = append(outcomes, outcome)
		if !outcome.OK() {
			return outcomes, FirstFailure(outcomes)
		}
	}

	m.logger.Info().Int("count", len(resources.Subscriptions)).Msg("Processing subscriptions...")
	for _, spec := range resources.Subscriptions {
		outcome := m.ensureSubscription(ctx, spec)
		outcomes = append(outcomes, outcome)
		if !outcome.OK() {
			return outcomes, FirstFailure(outcomes)
		}
	}

	m.logger.Info().Msg("Pub/Sub setup completed successfully.")
	return outcomes, nil
}

func (m *MessagingManager) ensureTopic(ctx context.Context, spec TopicConfig) Outcome {
	resource := "topic/" + spec.Name
	log := m.logger.With().Str("topic", spec.Name).Logger()
	if spec.Name == "" {
		return FailedOutcome(resource, errors.New("topic name cannot be empty"))
	}

	exists, err := m.client.Topic(spec.Name).Exists(ctx)
	if err != nil {
		return FailedOutcome(resource, fmt.Errorf("failed to check existence of topic '%s': %w", spec.Name, err))
	}
	if exists {
		log.Warn().Msg("Topic already exists, skipping creation.")
		return ExistingOutcome(resource)
	}

	log.Info().Msg("Creating topic...")
	if _, err := m.client.CreateTopicWithConfig(ctx, spec); err != nil {
		// Someone else created it between the check and the create.
		if IsAlreadyExists(err) {
			log.Warn().Msg("Topic was created concurrently, treating as existing.")
			return ExistingOutcome(resource)
		}
		return FailedOutcome(resource, fmt.Errorf("failed to create topic '%s': %w", spec.Name, err))
	}
	log.Info().Msg("Topic created successfully.")
	return CreatedOutcome(resource)
}

func (m *MessagingManager) ensureSubscription(ctx context.Context, spec SubscriptionConfig) Outcome {
	resource := "subscription/" + spec.Name
	log := m.logger.With().Str("subscription", spec.Name).Str("topic", spec.Topic).Logger()
	if spec.Name == "" || spec.Topic == "" {
		return FailedOutcome(resource, errors.New("subscription name and topic cannot be empty"))
	}

	// The attached topic and the dead-letter topic must both be there before the subscription.
	required := []string{spec.Topic}
	if spec.DeadLetterPolicy != nil {
		required = append(required, spec.DeadLetterPolicy.DeadLetterTopic)
	}
	for _, topicID := range required {
		exists, err := m.client.Topic(topicID).Exists(ctx)
		if err != nil {
			return FailedOutcome(resource, fmt.Errorf("failed to check existence of topic '%s' for subscription '%s': %w", topicID, spec.Name, err))
		}
		if !exists {
			return FailedOutcome(resource, fmt.Errorf("topic '%s' for subscription '%s' does not exist", topicID, spec.Name))
		}
	}

	exists, err := m.client.Subscription(spec.Name).Exists(ctx)
	if err != nil {
		return FailedOutcome(resource, fmt.Errorf("failed to check existence of subscription '%s': %w", spec.Name, err))
	}
	if exists {
		log.Warn().Msg("Subscription already exists, leaving its configuration unchanged.")
		return ExistingOutcome(resource)
	}

	log.Info().Msg("Creating subscription...")
	if _, err := m.client.CreateSubscription(ctx, spec); err != nil {
		if IsAlreadyExists(err) {
			log.Warn().Msg("Subscription was created concurrently, treating as existing.")
			return ExistingOutcome(resource)
		}
		return FailedOutcome(resource, fmt.Errorf("failed to create subscription '%s': %w", spec.Name, err))
	}
	log.Info().Msg("Subscription created successfully.")
	return CreatedOutcome(resource)
}

// Teardown deletes the Pub/Sub resources, subscriptions first since they depend on topics.
// Resources that are already gone are not errors.
func (m *MessagingManager) Teardown(ctx context.Context, resources CloudResourcesSpec) error {
	m.logger.Info().Msg("Starting Pub/Sub teardown...")
	var allErrors []error

	for _, spec := range resources.Subscriptions {
		log := m.logger.With().Str("subscription", spec.Name).Logger()
		if spec.TeardownProtection {
			log.Warn().Msg("Teardown protection enabled, skipping deletion.")
			continue
		}
		log.Info().Msg("Attempting to delete subscription...")
		err := m.client.Subscription(spec.Name).Delete(ctx)
		if err != nil && !IsNotFound(err) {
			allErrors = append(allErrors, fmt.Errorf("failed to delete subscription %s: %w", spec.Name, err))
		}
	}

	for _, spec := range resources.Topics {
		log := m.logger.With().Str("topic", spec.Name).Logger()
		if spec.TeardownProtection {
			log.Warn().Msg("Teardown protection enabled, skipping deletion.")
			continue
		}
		log.Info().Msg("Attempting to delete topic...")
		err := m.client.Topic(spec.Name).Delete(ctx)
		if err != nil && !IsNotFound(err) {
			allErrors = append(allErrors, fmt.Errorf("failed to delete topic %s: %w", spec.Name, err))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("Pub/Sub teardown completed with errors: %w", errors.Join(allErrors...))
	}
	m.logger.Info().Msg("Pub/Sub teardown completed successfully.")
	return nil
}

// Verify checks that every topic and subscription exists and that each subscription's
// live dead-letter settings match the declared ones.
func (m *MessagingManager) Verify(ctx context.Context, resources CloudResourcesSpec) error {
	m.logger.Info().Msg("Verifying Pub/Sub resources...")
	var allErrors []error

	for _, spec := range resources.Topics {
		exists, err := m.client.Topic(spec.Name).Exists(ctx)
		if err != nil {
			allErrors = append(allErrors, fmt.Errorf("failed to check topic '%s': %w", spec.Name, err))
		} else if !exists {
			allErrors = append(allErrors, fmt.Errorf("topic '%s' not found", spec.Name))
		}
	}

	for _, spec := range resources.Subscriptions {
		sub := m.client.Subscription(spec.Name)
		exists, err := sub.Exists(ctx)
		if err != nil {
			allErrors = append(allErrors, fmt.Errorf("failed to check subscription '%s': %w", spec.Name, err))
			continue
		}
		if !exists {
			allErrors = append(allErrors, fmt.Errorf("subscription '%s' not found", spec.Name))
			continue
		}
		live, err := sub.Config(ctx)
		if err != nil {
			allErrors = append(allErrors, fmt.Errorf("failed to read config of subscription '%s': %w", spec.Name, err))
			continue
		}
		if err := compareSubscription(spec, live); err != nil {
			allErrors = append(allErrors, err)
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("Pub/Sub verification failed: %w", errors.Join(allErrors...))
	}
	m.logger.Info().Msg("Pub/Sub verification completed successfully.")
	return nil
}

// compareSubscription reports every drift between the declared and live subscription.
// Settings left at their zero value in the declaration are not compared.
func compareSubscription(want SubscriptionConfig, got *SubscriptionConfig) error {
	var drift []error
	if got.Topic != "" && got.Topic != want.Topic {
		drift = append(drift, fmt.Errorf("subscription '%s' is attached to topic '%s', expected '%s'", want.Name, got.Topic, want.Topic))
	}
	if want.AckDeadlineSeconds != 0 && got.AckDeadlineSeconds != want.AckDeadlineSeconds {
		drift = append(drift, fmt.Errorf("subscription '%s' has an ack deadline of %ds, expected %ds",
			want.Name, got.AckDeadlineSeconds, want.AckDeadlineSeconds))
	}
	if want.MessageRetention != 0 && got.MessageRetention != want.MessageRetention {
		drift = append(drift, fmt.Errorf("subscription '%s' retains messages for %s, expected %s",
			want.Name, got.MessageRetention, want.MessageRetention))
	}
	if want.RetryPolicy != nil {
		switch {
		case got.RetryPolicy == nil:
			drift = append(drift, fmt.Errorf("subscription '%s' has no retry policy", want.Name))
		case *got.RetryPolicy != *want.RetryPolicy:
			drift = append(drift, fmt.Errorf("subscription '%s' backs off between %s and %s, expected %s and %s",
				want.Name, got.RetryPolicy.MinimumBackoff, got.RetryPolicy.MaximumBackoff,
				want.RetryPolicy.MinimumBackoff, want.RetryPolicy.MaximumBackoff))
		}
	}
	if want.DeadLetterPolicy != nil {
		switch {
		case got.DeadLetterPolicy == nil:
			drift = append(drift, fmt.Errorf("subscription '%s' has no dead letter policy", want.Name))
		case got.DeadLetterPolicy.DeadLetterTopic != want.DeadLetterPolicy.DeadLetterTopic:
			drift = append(drift, fmt.Errorf("subscription '%s' dead-letters to '%s', expected '%s'",
				want.Name, got.DeadLetterPolicy.DeadLetterTopic, want.DeadLetterPolicy.DeadLetterTopic))
		case got.DeadLetterPolicy.MaxDeliveryAttempts != want.DeadLetterPolicy.MaxDeliveryAttempts:
			drift = append(drift, fmt.Errorf("subscription '%s' allows %d delivery attempts, expected %d",
				want.Name, got.DeadLetterPolicy.MaxDeliveryAttempts, want.DeadLetterPolicy.MaxDeliveryAttempts))
		}
	}
	return errors.Join(drift...)
}
