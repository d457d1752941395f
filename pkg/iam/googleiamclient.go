package iam

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// iamHandle abstracts the common methods of the resource-specific IAM handles
// (*iam.Handle for both Pub/Sub and Cloud Storage).
type iamHandle interface {
	Policy(ctx context.Context) (*iam.Policy, error)
	SetPolicy(ctx context.Context, p *iam.Policy) error
}

// GoogleIAMClient implements IAMClient on top of the IAM admin, Resource Manager,
// Pub/Sub and Cloud Storage clients.
type GoogleIAMClient struct {
	projectID     string
	accounts      *ServiceAccountManager
	projectIAM    *IAMProjectManager
	pubsubClient  *pubsub.Client
	storageClient *storage.Client
	ownsPubsub    bool
	ownsStorage   bool
	logger        zerolog.Logger
}

// NewGoogleIAMClient creates a fully initialized client for real Google Cloud IAM operations.
// Non-nil Pub/Sub and Storage clients are borrowed from the caller and are not closed by Close.
func NewGoogleIAMClient(ctx context.Context, projectID string, psClient *pubsub.Client, gcsClient *storage.Client, logger zerolog.Logger, opts ...option.ClientOption) (*GoogleIAMClient, error) {
	accounts, err := NewServiceAccountManager(ctx, projectID, logger, opts...)
	if err != nil {
		return nil, err
	}
	projectIAM, err := NewIAMProjectManager(ctx, projectID, logger, opts...)
	if err != nil {
		_ = accounts.Close()
		return nil, err
	}

	c := &GoogleIAMClient{
		projectID:     projectID,
		accounts:      accounts,
		projectIAM:    projectIAM,
		pubsubClient:  psClient,
		storageClient: gcsClient,
		logger:        logger.With().Str("component", "GoogleIAMClient").Logger(),
	}
	if c.pubsubClient == nil {
		if c.pubsubClient, err = pubsub.NewClient(ctx, projectID, opts...); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		c.ownsPubsub = true
	}
	if c.storageClient == nil {
		if c.storageClient, err = storage.NewClient(ctx, opts...); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		c.ownsStorage = true
	}
	return c, nil
}

func (c *GoogleIAMClient) EnsureServiceAccount(ctx context.Context, accountID, displayName string) (string, bool, error) {
	return c.accounts.CreateServiceAccountIfNotExists(ctx, accountID, displayName)
}

func (c *GoogleIAMClient) GetServiceAccount(ctx context.Context, accountEmail string) error {
	_, err := c.accounts.GetServiceAccount(ctx, accountEmail)
	return err
}

func (c *GoogleIAMClient) DeleteServiceAccount(ctx context.Context, accountEmail string) error {
	return c.accounts.DeleteServiceAccount(ctx, accountEmail)
}

func (c *GoogleIAMClient) AddProjectIAMBinding(ctx context.Context, member, role string) error {
	return c.projectIAM.AddProjectIAMBinding(ctx, member, role)
}

func (c *GoogleIAMClient) CheckProjectIAMBinding(ctx context.Context, member, role string) (bool, error) {
	return c.projectIAM.CheckProjectIAMBinding(ctx, member, role)
}

func (c *GoogleIAMClient) ProjectNumber(ctx context.Context) (string, error) {
	return c.projectIAM.ProjectNumber(ctx)
}

// AddResourceIAMBinding uses the correct handle for the given resource type to add an IAM binding.
func (c *GoogleIAMClient) AddResourceIAMBinding(ctx context.Context, binding IAMBinding, member string) error {
	var handle iamHandle
	switch binding.ResourceType {
	case ResourceGCSBucket:
		handle = c.storageClient.Bucket(binding.ResourceID).IAM()
	case ResourcePubSubTopic:
		handle = c.pubsubClient.Topic(binding.ResourceID).IAM()
	case ResourcePubSubSubscription:
		handle = c.pubsubClient.Subscription(binding.ResourceID).IAM()
	default:
		return fmt.Errorf("unsupported resource type for IAM binding: %s", binding.ResourceType)
	}
	if err := addStandardIAMBinding(ctx, handle, binding.Role, member); err != nil {
		return fmt.Errorf("%s %s: %w", binding.ResourceType, binding.ResourceID, err)
	}
	c.logger.Debug().Str("resource", binding.ResourceID).Str("role", binding.Role).Str("member", member).Msg("Resource binding applied.")
	return nil
}

// Close terminates the underlying client connections owned by this client.
func (c *GoogleIAMClient) Close() error {
	var errs []error
	if c.accounts != nil {
		errs = append(errs, c.accounts.Close())
	}
	if c.projectIAM != nil {
		errs = append(errs, c.projectIAM.Close())
	}
	if c.ownsPubsub {
		errs = append(errs, c.pubsubClient.Close())
	}
	if c.ownsStorage {
		errs = append(errs, c.storageClient.Close())
	}
	return errors.Join(errs...)
}

// addStandardIAMBinding is a get-modify-set on resources that use the standard iam.Policy object.
func addStandardIAMBinding(ctx context.Context, handle iamHandle, role, member string) error {
	policy, err := handle.Policy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get policy: %w", err)
	}
	if policy.HasRole(member, iam.RoleName(role)) {
		return nil
	}
	policy.Add(member, iam.RoleName(role))
	return handle.SetPolicy(ctx, policy)
}
