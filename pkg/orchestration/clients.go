package orchestration

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/iam"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/prerequisites"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GoogleClients owns the real Google Cloud clients behind a set of Managers.
type GoogleClients struct {
	pubsub      *pubsub.Client
	storage     *storage.Client
	serviceAPIs prerequisites.ServiceAPIClient
	iam         *iam.GoogleIAMClient
	Managers    Managers
}

// NewGoogleClients creates the Google clients for spec and wires them into Managers.
// A single Pub/Sub and a single Storage client are shared by provisioning and IAM.
func NewGoogleClients(ctx context.Context, spec *config.DeploymentSpec, logger zerolog.Logger, opts ...option.ClientOption) (*GoogleClients, error) {
	gc := &GoogleClients{}
	var err error

	if gc.pubsub, err = pubsub.NewClient(ctx, spec.ProjectID, opts...); err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	if gc.storage, err = storage.NewClient(ctx, opts...); err != nil {
		_ = gc.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if gc.serviceAPIs, err = prerequisites.NewGoogleServiceAPIClient(ctx, logger, opts...); err != nil {
		_ = gc.Close()
		return nil, fmt.Errorf("failed to create service usage client: %w", err)
	}
	if gc.iam, err = iam.NewGoogleIAMClient(ctx, spec.ProjectID, gc.pubsub, gc.storage, logger, opts...); err != nil {
		_ = gc.Close()
		return nil, fmt.Errorf("failed to create IAM client: %w", err)
	}

	env := spec.Environment()
	identity, err := iam.NewIAMManager(gc.iam, logger)
	if err != nil {
		_ = gc.Close()
		return nil, err
	}
	storageManager, err := servicemanager.NewStorageManager(servicemanager.NewGCSClientAdapter(gc.storage), logger, env)
	if err != nil {
		_ = gc.Close()
		return nil, err
	}
	messagingManager, err := servicemanager.NewMessagingManager(servicemanager.MessagingClientFromPubsubClient(gc.pubsub), logger, env)
	if err != nil {
		_ = gc.Close()
		return nil, err
	}
	runner := deployment.NewExecCommandRunner(logger)
	invoker, err := deployment.NewInvoker(runner, logger)
	if err != nil {
		_ = gc.Close()
		return nil, err
	}

	gc.Managers = Managers{
		Checker:   prerequisites.NewChecker(runner, nil, logger),
		APIs:      prerequisites.NewManager(gc.serviceAPIs, logger),
		Identity:  identity,
		Storage:   storageManager,
		Messaging: messagingManager,
		Deployer:  invoker,
	}
	return gc, nil
}

// Close closes every client that was created, IAM first since it borrows the others.
func (gc *GoogleClients) Close() error {
	var errs []error
	if gc.iam != nil {
		errs = append(errs, gc.iam.Close())
	}
	if gc.serviceAPIs != nil {
		errs = append(errs, gc.serviceAPIs.Close())
	}
	if gc.storage != nil {
		errs = append(errs, gc.storage.Close())
	}
	if gc.pubsub != nil {
		errs = append(errs, gc.pubsub.Close())
	}
	return errors.Join(errs...)
}
