package prerequisites

import (
	"context"
	"errors"
	"fmt"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
)

// Manager enables and verifies the cloud APIs a deployment depends on.
type Manager struct {
	client ServiceAPIClient
	logger zerolog.Logger
}

// NewManager creates a new prerequisite manager.
func NewManager(client ServiceAPIClient, logger zerolog.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger.With().Str("component", "PrerequisiteManager").Logger(),
	}
}

// EnableAll issues an enable request for every API, in order, on every run. There is
// no existence check first because enabling is idempotent on the service side. The
// first failure stops the remaining enables.
func (m *Manager) EnableAll(ctx context.Context, projectID string, apis []string) ([]servicemanager.Outcome, error) {
	if len(apis) == 0 {
		m.logger.Info().Msg("No cloud APIs required. Skipping.")
		return nil, nil
	}
	m.logger.Info().Strs("apis", apis).Msg("Enabling required service APIs...")

	outcomes := make([]servicemanager.Outcome, 0, len(apis))
	for _, api := range apis {
		resource := "api/" + api
		if err := m.client.EnableService(ctx, projectID, api); err != nil {
			m.logger.Error().Err(err).Str("api", api).Msg("Failed to enable API.")
			outcomes = append(outcomes, servicemanager.FailedOutcome(resource, err))
			return outcomes, fmt.Errorf("failed to enable %s: %w", api, err)
		}
		m.logger.Info().Str("api", api).Msg("API enabled.")
		outcomes = append(outcomes, servicemanager.AppliedOutcome(resource))
	}
	return outcomes, nil
}

// VerifyEnabled reports every API in apis that is not enabled on the project.
func (m *Manager) VerifyEnabled(ctx context.Context, projectID string, apis []string) error {
	enabled, err := m.client.GetEnabledServices(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get currently enabled services: %w", err)
	}
	var missing []error
	for _, api := range apis {
		if _, ok := enabled[api]; !ok {
			missing = append(missing, fmt.Errorf("API %s is not enabled", api))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("API verification failed: %w", errors.Join(missing...))
	}
	m.logger.Info().Int("apis", len(apis)).Msg("All required service APIs are enabled.")
	return nil
}
