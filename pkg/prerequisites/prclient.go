package prerequisites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	serviceusage "cloud.google.com/go/serviceusage/apiv1"
	"cloud.google.com/go/serviceusage/apiv1/serviceusagepb"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ServiceAPIClient defines the contract for a client that can check for and
// enable cloud service APIs.
type ServiceAPIClient interface {
	GetEnabledServices(ctx context.Context, projectID string) (map[string]struct{}, error)
	EnableService(ctx context.Context, projectID, service string) error
	Close() error
}

// googleServiceAPIClient implements the ServiceAPIClient interface for GCP.
type googleServiceAPIClient struct {
	client *serviceusage.Client
	logger zerolog.Logger
}

// NewGoogleServiceAPIClient creates a new client for the GCP Service Usage API.
func NewGoogleServiceAPIClient(ctx context.Context, logger zerolog.Logger, opts ...option.ClientOption) (ServiceAPIClient, error) {
	client, err := serviceusage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create serviceusage client: %w", err)
	}
	return &googleServiceAPIClient{
		client: client,
		logger: logger.With().Str("component", "ServiceAPIClient").Logger(),
	}, nil
}

// GetEnabledServices retrieves a set of all currently enabled APIs for a project.
func (c *googleServiceAPIClient) GetEnabledServices(ctx context.Context, projectID string) (map[string]struct{}, error) {
	enabled := make(map[string]struct{})
	req := &serviceusagepb.ListServicesRequest{
		Parent: fmt.Sprintf("projects/%s", projectID),
		Filter: "state:ENABLED",
	}
	it := c.client.ListServices(ctx, req)
	for {
		service, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list enabled services: %w", err)
		}
		// "projects/12345/services/foo.googleapis.com" -> "foo.googleapis.com"
		if lastSlash := strings.LastIndex(service.Name, "/"); lastSlash != -1 {
			enabled[service.Name[lastSlash+1:]] = struct{}{}
		}
	}
	return enabled, nil
}

// EnableService enables one API and waits for the long-running operation.
// Enabling an API that is already enabled succeeds.
func (c *googleServiceAPIClient) EnableService(ctx context.Context, projectID, service string) error {
	op, err := c.client.EnableService(ctx, &serviceusagepb.EnableServiceRequest{
		Name: fmt.Sprintf("projects/%s/services/%s", projectID, service),
	})
	if err != nil {
		return fmt.Errorf("failed to start enable operation for %s: %w", service, err)
	}
	if _, err := op.Wait(ctx); err != nil {
		return fmt.Errorf("enable operation for %s failed: %w", service, err)
	}
	c.logger.Debug().Str("api", service).Msg("Enable operation completed.")
	return nil
}

func (c *googleServiceAPIClient) Close() error {
	return c.client.Close()
}
