package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
)

// IAMManager provisions the pipeline's service identity and its role grants.
type IAMManager struct {
	client IAMClient
	logger zerolog.Logger
}

// NewIAMManager creates a new IAMManager.
func NewIAMManager(client IAMClient, logger zerolog.Logger) (*IAMManager, error) {
	if client == nil {
		return nil, errors.New("IAM client cannot be nil")
	}
	return &IAMManager{
		client: client,
		logger: logger.With().Str("component", "IAMManager").Logger(),
	}, nil
}

// ProvisionIdentity ensures the service account exists and then grants every project
// role in spec. Grants are issued on every run, whether or not the account was just
// created. It returns the account email and one outcome per action; the first failure stops it.
func (im *IAMManager) ProvisionIdentity(ctx context.Context, spec ServiceAccountSpec) (string, []servicemanager.Outcome, error) {
	if spec.AccountID == "" {
		return "", nil, errors.New("service account id cannot be empty")
	}
	resource := "serviceaccount/" + spec.AccountID
	outcomes := make([]servicemanager.Outcome, 0, len(spec.ProjectRoles)+1)

	email, created, err := im.client.EnsureServiceAccount(ctx, spec.AccountID, spec.DisplayName)
	if err != nil {
		outcomes = append(outcomes, servicemanager.FailedOutcome(resource, err))
		return "", outcomes, fmt.Errorf("failed to ensure service account '%s' exists: %w", spec.AccountID, err)
	}
	if created {
		im.logger.Info().Str("email", email).Msg("Service account created.")
		outcomes = append(outcomes, servicemanager.CreatedOutcome(resource))
	} else {
		im.logger.Warn().Str("email", email).Msg("Service account already exists, reusing it.")
		outcomes = append(outcomes, servicemanager.ExistingOutcome(resource))
	}

	member := ServiceAccountMember(email)
	for _, role := range spec.ProjectRoles {
		log := im.logger.With().Str("member", member).Str("role", role).Logger()
		log.Info().Msg("Granting project role...")
		if err := im.client.AddProjectIAMBinding(ctx, member, role); err != nil {
			outcomes = append(outcomes, servicemanager.FailedOutcome("role/"+role, err))
			return email, outcomes, fmt.Errorf("failed to grant role '%s' to '%s': %w", role, member, err)
		}
		outcomes = append(outcomes, servicemanager.AppliedOutcome("role/"+role))
	}

	im.logger.Info().Str("email", email).Int("roles_applied", len(spec.ProjectRoles)).Msg("Identity provisioned.")
	return email, outcomes, nil
}

// ApplyBindings issues every resource binding for member, in order, on every run.
func (im *IAMManager) ApplyBindings(ctx context.Context, bindings []IAMBinding, member string) ([]servicemanager.Outcome, error) {
	outcomes := make([]servicemanager.Outcome, 0, len(bindings))
	for _, binding := range bindings {
		resource := fmt.Sprintf("%s/%s/%s", binding.ResourceType, binding.ResourceID, binding.Role)
		im.logger.Info().
			Str("member", member).
			Str("role", binding.Role).
			Str("resource_type", binding.ResourceType).
			Str("resource_id", binding.ResourceID).
			Msg("Applying resource binding")

		if err := im.client.AddResourceIAMBinding(ctx, binding, member); err != nil {
			outcomes = append(outcomes, servicemanager.FailedOutcome(resource, err))
			return outcomes, fmt.Errorf("failed to apply binding for resource '%s' with role '%s' to member '%s': %w", binding.ResourceID, binding.Role, member, err)
		}
		outcomes = append(outcomes, servicemanager.AppliedOutcome(resource))
	}
	return outcomes, nil
}

// ProjectNumber exposes the numeric project number, needed to address Google-managed service agents.
func (im *IAMManager) ProjectNumber(ctx context.Context) (string, error) {
	return im.client.ProjectNumber(ctx)
}

// VerifyIdentity checks that the service account exists and holds every project role.
func (im *IAMManager) VerifyIdentity(ctx context.Context, spec ServiceAccountSpec, email string) error {
	if err := im.client.GetServiceAccount(ctx, email); err != nil {
		return fmt.Errorf("service account '%s' not found: %w", email, err)
	}
	member := ServiceAccountMember(email)
	var missing []error
	for _, role := range spec.ProjectRoles {
		ok, err := im.client.CheckProjectIAMBinding(ctx, member, role)
		if err != nil {
			missing = append(missing, fmt.Errorf("failed to check role '%s': %w", role, err))
		} else if !ok {
			missing = append(missing, fmt.Errorf("role '%s' is not granted to '%s'", role, member))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("identity verification failed: %w", errors.Join(missing...))
	}
	im.logger.Info().Str("email", email).Msg("Identity verification completed successfully.")
	return nil
}

// DeleteIdentity removes the service account. Role bindings on the project go with it.
func (im *IAMManager) DeleteIdentity(ctx context.Context, email string) error {
	return im.client.DeleteServiceAccount(ctx, email)
}
