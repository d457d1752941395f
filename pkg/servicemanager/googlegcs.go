package servicemanager

import (
	"context"
	"errors"

	"cloud.google.com/go/storage"
)

// gcsBucketHandle abstracts the methods we need from *storage.BucketHandle so
// the adapter can be tested without a live bucket.
type gcsBucketHandle interface {
	Attrs(ctx context.Context) (*storage.BucketAttrs, error)
	Create(ctx context.Context, projectID string, attrs *storage.BucketAttrs) error
	Delete(ctx context.Context) error
}

func fromGCSBucketAttrs(gcsAttrs *storage.BucketAttrs) *BucketAttributes {
	if gcsAttrs == nil {
		return nil
	}
	return &BucketAttributes{
		Name:                     gcsAttrs.Name,
		Location:                 gcsAttrs.Location,
		StorageClass:             gcsAttrs.StorageClass,
		UniformBucketLevelAccess: gcsAttrs.UniformBucketLevelAccess.Enabled,
		Labels:                   gcsAttrs.Labels,
	}
}

func toGCSBucketAttrs(attrs *BucketAttributes) *storage.BucketAttrs {
	if attrs == nil {
		return nil
	}
	return &storage.BucketAttrs{
		Name:         attrs.Name,
		Location:     attrs.Location,
		StorageClass: attrs.StorageClass,
		Labels:       attrs.Labels,
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{
			Enabled: attrs.UniformBucketLevelAccess,
		},
	}
}

// gcsBucketHandleAdapter translates between the GCS types and BucketAttributes.
type gcsBucketHandleAdapter struct {
	bucket gcsBucketHandle
}

func (a *gcsBucketHandleAdapter) Attrs(ctx context.Context) (*BucketAttributes, error) {
	gcsAttrs, err := a.bucket.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, ErrBucketNotExist
		}
		return nil, err
	}
	return fromGCSBucketAttrs(gcsAttrs), nil
}

func (a *gcsBucketHandleAdapter) Create(ctx context.Context, projectID string, attrs *BucketAttributes) error {
	return a.bucket.Create(ctx, projectID, toGCSBucketAttrs(attrs))
}

func (a *gcsBucketHandleAdapter) Delete(ctx context.Context) error {
	err := a.bucket.Delete(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return ErrBucketNotExist
	}
	return err
}

// gcsClientAdapter wraps a *storage.Client to conform to our StorageClient interface.
type gcsClientAdapter struct {
	client *storage.Client
}

func (a *gcsClientAdapter) Bucket(name string) StorageBucketHandle {
	return &gcsBucketHandleAdapter{bucket: a.client.Bucket(name)}
}

func (a *gcsClientAdapter) Close() error {
	return a.client.Close()
}

// NewGCSClientAdapter creates a new StorageClient adapter from a concrete *storage.Client.
func NewGCSClientAdapter(client *storage.Client) StorageClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}
