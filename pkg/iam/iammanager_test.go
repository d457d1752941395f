package iam_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/iam"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIAMClient struct {
	mock.Mock
}

func (m *MockIAMClient) EnsureServiceAccount(ctx context.Context, accountID, displayName string) (string, bool, error) {
	args := m.Called(ctx, accountID, displayName)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *MockIAMClient) GetServiceAccount(ctx context.Context, accountEmail string) error {
	return m.Called(ctx, accountEmail).Error(0)
}
func (m *MockIAMClient) DeleteServiceAccount(ctx context.Context, accountEmail string) error {
	return m.Called(ctx, accountEmail).Error(0)
}
func (m *MockIAMClient) AddProjectIAMBinding(ctx context.Context, member, role string) error {
	return m.Called(ctx, member, role).Error(0)
}
func (m *MockIAMClient) CheckProjectIAMBinding(ctx context.Context, member, role string) (bool, error) {
	args := m.Called(ctx, member, role)
	return args.Bool(0), args.Error(1)
}
func (m *MockIAMClient) ProjectNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *MockIAMClient) AddResourceIAMBinding(ctx context.Context, binding iam.IAMBinding, member string) error {
	return m.Called(ctx, binding, member).Error(0)
}
func (m *MockIAMClient) Close() error {
	return m.Called().Error(0)
}

const (
	testAccountID = "video-analytics-pipeline"
	testEmail     = "video-analytics-pipeline@test-project.iam.gserviceaccount.com"
	testMember    = "serviceAccount:" + testEmail
)

func testAccountSpec() iam.ServiceAccountSpec {
	return iam.ServiceAccountSpec{
		AccountID:    testAccountID,
		DisplayName:  "Video Analytics Pipeline Service Account",
		ProjectRoles: iam.PipelineWorkerRoles,
	}
}

func TestNewIAMManager_NilClient(t *testing.T) {
	_, err := iam.NewIAMManager(nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestIAMManager_ProvisionIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("New account gets every role", func(t *testing.T) {
		// ARRANGE
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		spec := testAccountSpec()

		mockClient.On("EnsureServiceAccount", ctx, testAccountID, spec.DisplayName).Return(testEmail, true, nil).Once()
		for _, role := range spec.ProjectRoles {
			mockClient.On("AddProjectIAMBinding", ctx, testMember, role).Return(nil).Once()
		}

		// ACT
		email, outcomes, err := manager.ProvisionIdentity(ctx, spec)

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, testEmail, email)
		require.Len(t, outcomes, 8)
		assert.Equal(t, servicemanager.Created, outcomes[0].Kind)
		for _, o := range outcomes[1:] {
			assert.Equal(t, servicemanager.Applied, o.Kind)
		}
		mockClient.AssertExpectations(t)
	})

	t.Run("Existing account still gets every role", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		spec := testAccountSpec()

		mockClient.On("EnsureServiceAccount", ctx, testAccountID, spec.DisplayName).Return(testEmail, false, nil).Once()
		mockClient.On("AddProjectIAMBinding", ctx, testMember, mock.Anything).Return(nil)

		_, outcomes, err := manager.ProvisionIdentity(ctx, spec)

		require.NoError(t, err)
		assert.Equal(t, servicemanager.AlreadyExists, outcomes[0].Kind)
		mockClient.AssertNumberOfCalls(t, "AddProjectIAMBinding", len(spec.ProjectRoles))
	})

	t.Run("Creation failure is not swallowed", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		createErr := errors.New("permission denied on iam.serviceAccounts.create")

		mockClient.On("EnsureServiceAccount", ctx, testAccountID, mock.Anything).Return("", false, createErr).Once()

		_, outcomes, err := manager.ProvisionIdentity(ctx, testAccountSpec())

		require.Error(t, err)
		assert.ErrorIs(t, err, createErr)
		require.Len(t, outcomes, 1)
		assert.Equal(t, servicemanager.Failed, outcomes[0].Kind)
		mockClient.AssertNotCalled(t, "AddProjectIAMBinding", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Grant failure stops remaining roles", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		spec := testAccountSpec()

		mockClient.On("EnsureServiceAccount", ctx, testAccountID, mock.Anything).Return(testEmail, false, nil).Once()
		mockClient.On("AddProjectIAMBinding", ctx, testMember, iam.RoleDataflowWorker).Return(nil).Once()
		mockClient.On("AddProjectIAMBinding", ctx, testMember, iam.RoleDataflowDeveloper).Return(errors.New("boom")).Once()

		_, outcomes, err := manager.ProvisionIdentity(ctx, spec)

		require.Error(t, err)
		assert.Contains(t, err.Error(), iam.RoleDataflowDeveloper)
		assert.Len(t, outcomes, 3)
		mockClient.AssertNumberOfCalls(t, "AddProjectIAMBinding", 2)
	})

	t.Run("Empty account id", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)

		_, _, err = manager.ProvisionIdentity(ctx, iam.ServiceAccountSpec{})
		assert.Error(t, err)
		mockClient.AssertNotCalled(t, "EnsureServiceAccount", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestIAMManager_ApplyBindings(t *testing.T) {
	ctx := context.Background()
	bindings := []iam.IAMBinding{
		{ResourceType: iam.ResourceGCSBucket, ResourceID: "p-video-analytics-staging", Role: iam.RoleStorageObjectAdmin},
		{ResourceType: iam.ResourceGCSBucket, ResourceID: "p-video-analytics-temp", Role: iam.RoleStorageObjectAdmin},
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		mockClient.On("AddResourceIAMBinding", ctx, bindings[0], testMember).Return(nil).Once()
		mockClient.On("AddResourceIAMBinding", ctx, bindings[1], testMember).Return(nil).Once()

		outcomes, err := manager.ApplyBindings(ctx, bindings, testMember)

		require.NoError(t, err)
		assert.Len(t, outcomes, 2)
		mockClient.AssertExpectations(t)
	})

	t.Run("Failure", func(t *testing.T) {
		mockClient := new(MockIAMClient)
		manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
		require.NoError(t, err)
		mockClient.On("AddResourceIAMBinding", ctx, bindings[0], testMember).Return(errors.New("denied")).Once()

		_, err = manager.ApplyBindings(ctx, bindings, testMember)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "p-video-analytics-staging")
		mockClient.AssertNotCalled(t, "AddResourceIAMBinding", ctx, bindings[1], testMember)
	})
}

func TestIAMManager_VerifyIdentity(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockIAMClient)
	manager, err := iam.NewIAMManager(mockClient, zerolog.Nop())
	require.NoError(t, err)
	spec := testAccountSpec()

	mockClient.On("GetServiceAccount", ctx, testEmail).Return(nil)
	mockClient.On("CheckProjectIAMBinding", ctx, testMember, iam.RoleLoggingWriter).Return(false, nil)
	mockClient.On("CheckProjectIAMBinding", ctx, testMember, mock.Anything).Return(true, nil)

	err = manager.VerifyIdentity(ctx, spec, testEmail)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "role 'roles/logging.logWriter' is not granted")
	assert.NotContains(t, err.Error(), iam.RoleDataflowWorker)
}
