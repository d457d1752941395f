//go:build integration

package servicemanager_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMessagingManager_Integration runs the manager against the Pub/Sub emulator.
// The pubsub client connects to it when PUBSUB_EMULATOR_HOST is set.
func TestMessagingManager_Integration(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set")
	}
	ctx := context.Background()
	projectID := "msg-it-project"
	runID := uuid.New().String()[:8]

	inputTopic := fmt.Sprintf("it-input-%s", runID)
	deadLetterTopic := fmt.Sprintf("it-dead-letter-%s", runID)
	subName := fmt.Sprintf("it-input-sub-%s", runID)

	resources := servicemanager.CloudResourcesSpec{
		Topics: []servicemanager.TopicConfig{
			{CloudResource: servicemanager.CloudResource{Name: inputTopic}},
			{CloudResource: servicemanager.CloudResource{Name: deadLetterTopic}},
		},
		Subscriptions: []servicemanager.SubscriptionConfig{
			{
				CloudResource:      servicemanager.CloudResource{Name: subName},
				Topic:              inputTopic,
				AckDeadlineSeconds: 60,
				MessageRetention:   servicemanager.Duration(7 * 24 * time.Hour),
				DeadLetterPolicy: &servicemanager.DeadLetterPolicySpec{
					DeadLetterTopic:     deadLetterTopic,
					MaxDeliveryAttempts: 5,
				},
			},
		},
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := psClient.Close(); err != nil {
			t.Logf("Error closing Pub/Sub client: %v", err)
		}
	})

	logger := zerolog.New(zerolog.NewConsoleWriter())
	manager, err := servicemanager.NewMessagingManager(servicemanager.MessagingClientFromPubsubClient(psClient), logger, servicemanager.Environment{ProjectID: projectID})
	require.NoError(t, err)

	// --- Phase 1: CREATE ---
	outcomes, err := manager.CreateResources(ctx, resources)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, servicemanager.Created, o.Kind, o.Resource)
	}

	cfg, err := psClient.Subscription(subName).Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.AckDeadline)
	require.NotNil(t, cfg.DeadLetterPolicy)
	assert.Equal(t, psClient.Topic(deadLetterTopic).String(), cfg.DeadLetterPolicy.DeadLetterTopic)
	assert.Equal(t, 5, cfg.DeadLetterPolicy.MaxDeliveryAttempts)

	// --- Phase 2: VERIFY and SECOND RUN ---
	require.NoError(t, manager.Verify(ctx, resources))
	outcomes, err = manager.CreateResources(ctx, resources)
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, servicemanager.AlreadyExists, o.Kind, o.Resource)
	}

	// --- Phase 3: TEARDOWN ---
	require.NoError(t, manager.Teardown(ctx, resources))
	exists, err := psClient.Topic(inputTopic).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "topic should be deleted")
	exists, err = psClient.Subscription(subName).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "subscription should be deleted")
}
