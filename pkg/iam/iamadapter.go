package iam

import "context"

// IAMClient defines the interface for low-level IAM operations.
// The concrete implementation is expected to be pre-configured with a project ID.
type IAMClient interface {
	// Service Account Lifecycle
	// EnsureServiceAccount returns the account email and whether this call created it.
	EnsureServiceAccount(ctx context.Context, accountID, displayName string) (string, bool, error)
	GetServiceAccount(ctx context.Context, accountEmail string) error
	DeleteServiceAccount(ctx context.Context, accountEmail string) error

	// Project IAM Policy
	AddProjectIAMBinding(ctx context.Context, member, role string) error
	CheckProjectIAMBinding(ctx context.Context, member, role string) (bool, error)
	ProjectNumber(ctx context.Context) (string, error)

	// Resource IAM Policies
	AddResourceIAMBinding(ctx context.Context, binding IAMBinding, member string) error

	// General
	Close() error
}
