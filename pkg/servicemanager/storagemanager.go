package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrBucketNotExist is returned by StorageBucketHandle implementations when a bucket is absent.
var ErrBucketNotExist = errors.New("storage: bucket does not exist")

// StorageManager handles the creation, verification and deletion of storage buckets.
type StorageManager struct {
	client      StorageClient
	logger      zerolog.Logger
	environment Environment
}

// NewStorageManager creates a new manager for orchestrating storage bucket resources.
func NewStorageManager(client StorageClient, logger zerolog.Logger, environment Environment) (*StorageManager, error) {
	if client == nil {
		return nil, errors.New("storage client (StorageClient interface) cannot be nil")
	}
	return &StorageManager{
		client:      client,
		logger:      logger.With().Str("component", "StorageManager").Logger(),
		environment: environment,
	}, nil
}

// CreateResources creates each declared bucket that does not exist yet, in order.
// Existing buckets are reported and never modified. It stops at the first failure.
func (sm *StorageManager) CreateResources(ctx context.Context, resources CloudResourcesSpec) ([]Outcome, error) {
	sm.logger.Info().Str("project_id", sm.environment.ProjectID).Msg("Starting Storage Bucket setup")

	outcomes := make([]Outcome, 0, len(resources.GCSBuckets))
	for _, cfg := range resources.GCSBuckets {
		outcome := sm.ensureBucket(ctx, cfg)
		outcomes = append(outcomes, outcome)
		if !outcome.OK() {
			return outcomes, FirstFailure(outcomes)
		}
	}

	sm.logger.Info().Msg("Storage Bucket setup completed successfully.")
	return outcomes, nil
}

func (sm *StorageManager) ensureBucket(ctx context.Context, cfg GCSBucket) Outcome {
	resource := "bucket/" + cfg.Name
	if !IsValidBucketName(cfg.Name) {
		return FailedOutcome(resource, fmt.Errorf("invalid bucket name '%s'", cfg.Name))
	}
	log := sm.logger.With().Str("bucket", cfg.Name).Logger()

	bucketHandle := sm.client.Bucket(cfg.Name)
	_, err := bucketHandle.Attrs(ctx)
	if err == nil {
		log.Warn().Msg("Bucket already exists, skipping creation.")
		return ExistingOutcome(resource)
	}
	if !errors.Is(err, ErrBucketNotExist) {
		return FailedOutcome(resource, fmt.Errorf("failed to check existence of bucket '%s': %w", cfg.Name, err))
	}

	location := cfg.Location
	if location == "" {
		location = sm.environment.Region
	}
	labels := mergeLabels(sm.environment.Labels, cfg.Labels)

	log.Info().Str("location", location).Str("storage_class", cfg.StorageClass).Msg("Bucket does not exist, creating.")
	createErr := bucketHandle.Create(ctx, sm.environment.ProjectID, &BucketAttributes{
		Name:                     cfg.Name,
		Location:                 location,
		StorageClass:             cfg.StorageClass,
		UniformBucketLevelAccess: cfg.UniformBucketLevelAccess,
		Labels:                   labels,
	})
	if createErr != nil {
		if IsAlreadyExists(createErr) {
			log.Warn().Msg("Bucket was created concurrently, treating as existing.")
			return ExistingOutcome(resource)
		}
		return FailedOutcome(resource, fmt.Errorf("failed to create bucket '%s': %w", cfg.Name, createErr))
	}
	log.Info().Msg("Bucket created successfully.")
	return CreatedOutcome(resource)
}

// Teardown deletes the declared buckets, skipping those with teardown protection.
func (sm *StorageManager) Teardown(ctx context.Context, resources CloudResourcesSpec) error {
	sm.logger.Info().Msg("Starting Storage Bucket teardown")
	var allErrors []error

	for _, cfg := range resources.GCSBuckets {
		log := sm.logger.With().Str("bucket", cfg.Name).Logger()
		if cfg.TeardownProtection {
			log.Warn().Msg("Teardown protection enabled, skipping deletion.")
			continue
		}

		log.Info().Msg("Attempting to delete bucket...")
		deleteErr := sm.client.Bucket(cfg.Name).Delete(ctx)
		switch {
		case deleteErr == nil:
			log.Info().Msg("Bucket deleted successfully.")
		case errors.Is(deleteErr, ErrBucketNotExist) || IsNotFound(deleteErr):
			log.Info().Msg("Bucket does not exist, skipping deletion.")
		case strings.Contains(strings.ToLower(deleteErr.Error()), "not empty"):
			allErrors = append(allErrors, fmt.Errorf("failed to delete bucket '%s' because it is not empty", cfg.Name))
		default:
			allErrors = append(allErrors, fmt.Errorf("failed to delete bucket '%s': %w", cfg.Name, deleteErr))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("storage Bucket teardown completed with errors: %w", errors.Join(allErrors...))
	}
	sm.logger.Info().Msg("storage Bucket teardown completed successfully.")
	return nil
}

// Verify checks that every declared bucket exists with uniform bucket-level access
// matching the declaration.
func (sm *StorageManager) Verify(ctx context.Context, resources CloudResourcesSpec) error {
	sm.logger.Info().Msg("Verifying Storage Buckets...")
	var allErrors []error

	for _, cfg := range resources.GCSBuckets {
		attrs, err := sm.client.Bucket(cfg.Name).Attrs(ctx)
		switch {
		case errors.Is(err, ErrBucketNotExist):
			allErrors = append(allErrors, fmt.Errorf("bucket '%s' not found", cfg.Name))
		case err != nil:
			allErrors = append(allErrors, fmt.Errorf("failed to verify bucket '%s': %w", cfg.Name, err))
		case cfg.UniformBucketLevelAccess && !attrs.UniformBucketLevelAccess:
			allErrors = append(allErrors, fmt.Errorf("bucket '%s' does not have uniform bucket-level access", cfg.Name))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("storage Bucket verification completed with errors: %w", errors.Join(allErrors...))
	}
	sm.logger.Info().Msg("Storage Bucket verification completed successfully.")
	return nil
}

// mergeLabels returns base overlaid with override. Neither input is modified.
func mergeLabels(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
