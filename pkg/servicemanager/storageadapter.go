package servicemanager

import "context"

// BucketAttributes is the provider-neutral view of a storage bucket.
type BucketAttributes struct {
	Name                     string
	Location                 string
	StorageClass             string
	UniformBucketLevelAccess bool
	Labels                   map[string]string
}

// StorageBucketHandle defines an interface for interacting with a storage bucket.
// Attrs returns ErrBucketNotExist when the bucket is absent.
type StorageBucketHandle interface {
	Attrs(ctx context.Context) (*BucketAttributes, error)
	Create(ctx context.Context, projectID string, attrs *BucketAttributes) error
	Delete(ctx context.Context) error
}

// StorageClient defines a generic interface for a storage client.
type StorageClient interface {
	Bucket(name string) StorageBucketHandle
	Close() error
}
