package iam

import (
	"context"
	"fmt"

	iamadmin "cloud.google.com/go/iam/admin/apiv1"
	"cloud.google.com/go/iam/admin/apiv1/adminpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// serviceAccountAPI is the part of *iamadmin.IamClient the manager calls.
type serviceAccountAPI interface {
	GetServiceAccount(ctx context.Context, req *adminpb.GetServiceAccountRequest, opts ...gax.CallOption) (*adminpb.ServiceAccount, error)
	CreateServiceAccount(ctx context.Context, req *adminpb.CreateServiceAccountRequest, opts ...gax.CallOption) (*adminpb.ServiceAccount, error)
	DeleteServiceAccount(ctx context.Context, req *adminpb.DeleteServiceAccountRequest, opts ...gax.CallOption) error
	Close() error
}

// ServiceAccountManager creates, reads and deletes user-managed service accounts.
type ServiceAccountManager struct {
	adminClient serviceAccountAPI
	projectID   string
	logger      zerolog.Logger
}

// NewServiceAccountManager creates and returns a new ServiceAccountManager.
func NewServiceAccountManager(ctx context.Context, projectID string, logger zerolog.Logger, opts ...option.ClientOption) (*ServiceAccountManager, error) {
	client, err := iamadmin.NewIamClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create IAM admin client: %w", err)
	}
	return newServiceAccountManager(client, projectID, logger), nil
}

func newServiceAccountManager(client serviceAccountAPI, projectID string, logger zerolog.Logger) *ServiceAccountManager {
	return &ServiceAccountManager{
		adminClient: client,
		projectID:   projectID,
		logger:      logger.With().Str("component", "ServiceAccountManager").Logger(),
	}
}

// Close closes the underlying client connection.
func (sm *ServiceAccountManager) Close() error {
	if sm.adminClient != nil {
		return sm.adminClient.Close()
	}
	return nil
}

// Example: projects/my-project/serviceAccounts/my-sa@my-project.iam.gserviceaccount.com
func (sm *ServiceAccountManager) resourceName(accountEmail string) string {
	return fmt.Sprintf("projects/%s/serviceAccounts/%s", sm.projectID, accountEmail)
}

// GetServiceAccount looks up a service account by email. A missing account
// returns the gRPC NotFound status unchanged.
func (sm *ServiceAccountManager) GetServiceAccount(ctx context.Context, accountEmail string) (*adminpb.ServiceAccount, error) {
	sa, err := sm.adminClient.GetServiceAccount(ctx, &adminpb.GetServiceAccountRequest{
		Name: sm.resourceName(accountEmail),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get service account %q: %w", accountEmail, err)
	}
	sm.logger.Debug().Str("email", sa.GetEmail()).Msg("Found service account.")
	return sa, nil
}

// CreateServiceAccountIfNotExists returns the account email and true when it had to be created.
// Only NotFound on the lookup leads to a create; an AlreadyExists answer to the create
// means another caller won the race and is reported as existing.
func (sm *ServiceAccountManager) CreateServiceAccountIfNotExists(ctx context.Context, accountID, displayName string) (string, bool, error) {
	email := ServiceAccountEmail(accountID, sm.projectID)
	log := sm.logger.With().Str("email", email).Logger()

	_, err := sm.GetServiceAccount(ctx, email)
	if err == nil {
		log.Warn().Msg("Service account already exists.")
		return email, false, nil
	}
	if status.Code(err) != codes.NotFound {
		return "", false, fmt.Errorf("unexpected error when checking service account %q: %w", accountID, err)
	}

	sa, err := sm.adminClient.CreateServiceAccount(ctx, &adminpb.CreateServiceAccountRequest{
		Name:      "projects/" + sm.projectID,
		AccountId: accountID,
		ServiceAccount: &adminpb.ServiceAccount{
			DisplayName: displayName,
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			log.Warn().Msg("Service account was created concurrently.")
			return email, false, nil
		}
		return "", false, fmt.Errorf("failed to create service account %q: %w", accountID, err)
	}
	log.Info().Msg("Successfully created service account.")
	return sa.GetEmail(), true, nil
}

// DeleteServiceAccount deletes a service account. A missing account is not an error.
func (sm *ServiceAccountManager) DeleteServiceAccount(ctx context.Context, accountEmail string) error {
	err := sm.adminClient.DeleteServiceAccount(ctx, &adminpb.DeleteServiceAccountRequest{
		Name: sm.resourceName(accountEmail),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			sm.logger.Info().Str("email", accountEmail).Msg("Service account not found, skipping deletion.")
			return nil
		}
		return fmt.Errorf("failed to delete service account %q: %w", accountEmail, err)
	}
	sm.logger.Info().Str("email", accountEmail).Msg("Successfully deleted service account.")
	return nil
}
