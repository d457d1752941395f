package iam

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/iam/apiv1/iampb"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/expr"
)

func TestAddMemberToPolicy(t *testing.T) {
	const member = "serviceAccount:sa@p.iam.gserviceaccount.com"

	t.Run("New role", func(t *testing.T) {
		policy := &iampb.Policy{}
		assert.True(t, addMemberToPolicy(policy, member, "roles/dataflow.worker"))
		require.Len(t, policy.Bindings, 1)
		assert.Equal(t, []string{member}, policy.Bindings[0].Members)
	})

	t.Run("Existing role without member", func(t *testing.T) {
		policy := &iampb.Policy{Bindings: []*iampb.Binding{{Role: "roles/dataflow.worker", Members: []string{"user:a@b.c"}}}}
		assert.True(t, addMemberToPolicy(policy, member, "roles/dataflow.worker"))
		assert.Equal(t, []string{"user:a@b.c", member}, policy.Bindings[0].Members)
	})

	t.Run("Already bound", func(t *testing.T) {
		policy := &iampb.Policy{Bindings: []*iampb.Binding{{Role: "roles/dataflow.worker", Members: []string{member}}}}
		assert.False(t, addMemberToPolicy(policy, member, "roles/dataflow.worker"))
		assert.True(t, policyHasMember(policy, member, "roles/dataflow.worker"))
	})

	t.Run("Conditional binding is not reused", func(t *testing.T) {
		policy := &iampb.Policy{Bindings: []*iampb.Binding{{
			Role:      "roles/dataflow.worker",
			Members:   []string{"user:a@b.c"},
			Condition: &expr.Expr{Expression: "request.time < timestamp('2030-01-01T00:00:00Z')"},
		}}}
		assert.True(t, addMemberToPolicy(policy, member, "roles/dataflow.worker"))
		require.Len(t, policy.Bindings, 2)
		assert.Equal(t, []string{"user:a@b.c"}, policy.Bindings[0].Members)
	})
}

type fakeIAMHandle struct {
	policy  *iam.Policy
	getErr  error
	setErr  error
	setCall int
}

func (f *fakeIAMHandle) Policy(context.Context) (*iam.Policy, error) { return f.policy, f.getErr }
func (f *fakeIAMHandle) SetPolicy(_ context.Context, p *iam.Policy) error {
	f.setCall++
	f.policy = p
	return f.setErr
}

func TestAddStandardIAMBinding(t *testing.T) {
	ctx := context.Background()
	const member = "serviceAccount:sa@p.iam.gserviceaccount.com"

	t.Run("Adds missing member", func(t *testing.T) {
		handle := &fakeIAMHandle{policy: &iam.Policy{InternalProto: &iampb.Policy{}}}
		require.NoError(t, addStandardIAMBinding(ctx, handle, "roles/storage.objectAdmin", member))
		assert.Equal(t, 1, handle.setCall)
		assert.True(t, handle.policy.HasRole(member, "roles/storage.objectAdmin"))
	})

	t.Run("Skips set when already bound", func(t *testing.T) {
		proto := &iampb.Policy{Bindings: []*iampb.Binding{{Role: "roles/storage.objectAdmin", Members: []string{member}}}}
		handle := &fakeIAMHandle{policy: &iam.Policy{InternalProto: proto}}
		require.NoError(t, addStandardIAMBinding(ctx, handle, "roles/storage.objectAdmin", member))
		assert.Equal(t, 0, handle.setCall)
	})

	t.Run("Get error", func(t *testing.T) {
		handle := &fakeIAMHandle{getErr: errors.New("denied")}
		err := addStandardIAMBinding(ctx, handle, "roles/storage.objectAdmin", member)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get policy")
	})
}

type fakeProjectsAPI struct {
	policy  *iampb.Policy
	getReqs []*iampb.GetIamPolicyRequest
	setReqs []*iampb.SetIamPolicyRequest
}

func (f *fakeProjectsAPI) GetIamPolicy(_ context.Context, req *iampb.GetIamPolicyRequest, _ ...gax.CallOption) (*iampb.Policy, error) {
	f.getReqs = append(f.getReqs, req)
	return f.policy, nil
}

func (f *fakeProjectsAPI) SetIamPolicy(_ context.Context, req *iampb.SetIamPolicyRequest, _ ...gax.CallOption) (*iampb.Policy, error) {
	f.setReqs = append(f.setReqs, req)
	f.policy = req.Policy
	return req.Policy, nil
}

func (f *fakeProjectsAPI) GetProject(_ context.Context, req *resourcemanagerpb.GetProjectRequest, _ ...gax.CallOption) (*resourcemanagerpb.Project, error) {
	return &resourcemanagerpb.Project{Name: "projects/123456789", ProjectId: strings.TrimPrefix(req.Name, "projects/")}, nil
}

func (f *fakeProjectsAPI) Close() error { return nil }

func TestIAMProjectManager_AddProjectIAMBinding(t *testing.T) {
	ctx := context.Background()
	const member = "serviceAccount:sa@p.iam.gserviceaccount.com"
	condition := &expr.Expr{Expression: "request.time < timestamp('2030-01-01T00:00:00Z')"}

	t.Run("Keeps conditional bindings at version 3", func(t *testing.T) {
		api := &fakeProjectsAPI{policy: &iampb.Policy{
			Version: 3,
			Etag:    []byte("etag-1"),
			Bindings: []*iampb.Binding{{
				Role:      "roles/dataflow.worker",
				Members:   []string{"user:a@b.c"},
				Condition: condition,
			}},
		}}
		manager := newIAMProjectManager(api, "p", zerolog.Nop())

		require.NoError(t, manager.AddProjectIAMBinding(ctx, member, "roles/dataflow.worker"))

		require.Len(t, api.getReqs, 1)
		assert.Equal(t, "projects/p", api.getReqs[0].Resource)
		assert.Equal(t, int32(3), api.getReqs[0].GetOptions().GetRequestedPolicyVersion())
		require.Len(t, api.setReqs, 1)
		sent := api.setReqs[0].Policy
		assert.Equal(t, int32(3), sent.Version)
		assert.Equal(t, []byte("etag-1"), sent.Etag)
		require.Len(t, sent.Bindings, 2)
		assert.Same(t, condition, sent.Bindings[0].Condition)
		assert.Nil(t, sent.Bindings[1].Condition)
		assert.Equal(t, []string{member}, sent.Bindings[1].Members)
	})

	t.Run("Raises version of a conditional policy", func(t *testing.T) {
		api := &fakeProjectsAPI{policy: &iampb.Policy{
			Version:  1,
			Bindings: []*iampb.Binding{{Role: "roles/viewer", Members: []string{"user:a@b.c"}, Condition: condition}},
		}}
		manager := newIAMProjectManager(api, "p", zerolog.Nop())

		require.NoError(t, manager.AddProjectIAMBinding(ctx, member, "roles/dataflow.worker"))
		require.Len(t, api.setReqs, 1)
		assert.Equal(t, int32(3), api.setReqs[0].Policy.Version)
	})

	t.Run("Already bound skips the write", func(t *testing.T) {
		api := &fakeProjectsAPI{policy: &iampb.Policy{
			Bindings: []*iampb.Binding{{Role: "roles/dataflow.worker", Members: []string{member}}},
		}}
		manager := newIAMProjectManager(api, "p", zerolog.Nop())

		require.NoError(t, manager.AddProjectIAMBinding(ctx, member, "roles/dataflow.worker"))
		assert.Empty(t, api.setReqs)
	})

	t.Run("Conditional grant does not count as held", func(t *testing.T) {
		api := &fakeProjectsAPI{policy: &iampb.Policy{
			Version:  3,
			Bindings: []*iampb.Binding{{Role: "roles/dataflow.worker", Members: []string{member}, Condition: condition}},
		}}
		manager := newIAMProjectManager(api, "p", zerolog.Nop())

		held, err := manager.CheckProjectIAMBinding(ctx, member, "roles/dataflow.worker")
		require.NoError(t, err)
		assert.False(t, held)
		assert.Equal(t, int32(3), api.getReqs[0].GetOptions().GetRequestedPolicyVersion())
	})
}

func TestIAMProjectManager_ProjectNumber(t *testing.T) {
	manager := newIAMProjectManager(&fakeProjectsAPI{}, "p", zerolog.Nop())

	number, err := manager.ProjectNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789", number)
}
