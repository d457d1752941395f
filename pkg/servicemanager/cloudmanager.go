package servicemanager

import "context"

type IManager interface {
	Teardown(ctx context.Context, resources CloudResourcesSpec) error
	Verify(ctx context.Context, resources CloudResourcesSpec) error
}

// IMessagingManager defines the interface for a MessagingManager.
type IMessagingManager interface {
	IManager
	CreateResources(ctx context.Context, resources CloudResourcesSpec) ([]Outcome, error)
}

// IStorageManager defines the interface for a StorageManager.
type IStorageManager interface {
	IManager
	CreateResources(ctx context.Context, resources CloudResourcesSpec) ([]Outcome, error)
}
