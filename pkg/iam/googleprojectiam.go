package iam

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/iam/apiv1/iampb"
	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// conditionalPolicyVersion is the policy version that can carry conditional bindings.
const conditionalPolicyVersion = 3

// projectsAPI is the part of *resourcemanager.ProjectsClient the manager calls.
type projectsAPI interface {
	GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	GetProject(ctx context.Context, req *resourcemanagerpb.GetProjectRequest, opts ...gax.CallOption) (*resourcemanagerpb.Project, error)
	Close() error
}

// IAMProjectManager is a dedicated client for managing project-level IAM policies.
type IAMProjectManager struct {
	projectID string
	client    projectsAPI
	logger    zerolog.Logger
}

// NewIAMProjectManager creates a new manager for project-level IAM.
func NewIAMProjectManager(ctx context.Context, projectID string, logger zerolog.Logger, opts ...option.ClientOption) (*IAMProjectManager, error) {
	client, err := resourcemanager.NewProjectsClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resourcemanager client: %w", err)
	}
	return newIAMProjectManager(client, projectID, logger), nil
}

func newIAMProjectManager(client projectsAPI, projectID string, logger zerolog.Logger) *IAMProjectManager {
	return &IAMProjectManager{
		projectID: projectID,
		client:    client,
		logger:    logger.With().Str("component", "IAMProjectManager").Logger(),
	}
}

func (m *IAMProjectManager) resource() string {
	return "projects/" + m.projectID
}

// getPolicy reads the project policy at version 3 so conditional bindings come back intact.
func (m *IAMProjectManager) getPolicy(ctx context.Context) (*iampb.Policy, error) {
	policy, err := m.client.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{
		Resource: m.resource(),
		Options:  &iampb.GetPolicyOptions{RequestedPolicyVersion: conditionalPolicyVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get project IAM policy: %w", err)
	}
	return policy, nil
}

// AddProjectIAMBinding grants a role to a member at the project level using get-modify-set.
// The policy etag returned by the get is sent back, so a concurrent edit fails rather than being lost.
func (m *IAMProjectManager) AddProjectIAMBinding(ctx context.Context, member, role string) error {
	policy, err := m.getPolicy(ctx)
	if err != nil {
		return err
	}

	if !addMemberToPolicy(policy, member, role) {
		m.logger.Info().Str("member", member).Str("role", role).Msg("Member already has project-level role, no changes needed.")
		return nil
	}

	raisePolicyVersion(policy)
	_, err = m.client.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
		Resource: m.resource(),
		Policy:   policy,
	})
	if err != nil {
		return fmt.Errorf("failed to set project IAM policy: %w", err)
	}
	m.logger.Info().Str("member", member).Str("role", role).Msg("Successfully granted project-level IAM role.")
	return nil
}

// CheckProjectIAMBinding reports whether member holds role on the project.
func (m *IAMProjectManager) CheckProjectIAMBinding(ctx context.Context, member, role string) (bool, error) {
	policy, err := m.getPolicy(ctx)
	if err != nil {
		return false, err
	}
	return policyHasMember(policy, member, role), nil
}

// ProjectNumber resolves the numeric project number from the project ID.
func (m *IAMProjectManager) ProjectNumber(ctx context.Context) (string, error) {
	project, err := m.client.GetProject(ctx, &resourcemanagerpb.GetProjectRequest{Name: m.resource()})
	if err != nil {
		return "", fmt.Errorf("failed to get project %s: %w", m.projectID, err)
	}
	// The project resource name is "projects/<number>".
	return strings.TrimPrefix(project.GetName(), "projects/"), nil
}

// Close closes the underlying client connection.
func (m *IAMProjectManager) Close() error {
	return m.client.Close()
}

// addMemberToPolicy adds member to role in place and reports whether the policy changed.
func addMemberToPolicy(policy *iampb.Policy, member, role string) bool {
	var binding *iampb.Binding
	for _, b := range policy.Bindings {
		// Conditional bindings are left alone.
		if b.Role == role && b.Condition == nil {
			binding = b
			break
		}
	}
	if binding == nil {
		policy.Bindings = append(policy.Bindings, &iampb.Binding{Role: role, Members: []string{member}})
		return true
	}
	for _, existing := range binding.Members {
		if existing == member {
			return false
		}
	}
	binding.Members = append(binding.Members, member)
	return true
}

// raisePolicyVersion keeps a policy with conditional bindings at version 3,
// which SetIamPolicy requires for conditions.
func raisePolicyVersion(policy *iampb.Policy) {
	if policy.Version >= conditionalPolicyVersion {
		return
	}
	for _, b := range policy.Bindings {
		if b.Condition != nil {
			policy.Version = conditionalPolicyVersion
			return
		}
	}
}

// policyHasMember reports an unconditional grant of role to member.
func policyHasMember(policy *iampb.Policy, member, role string) bool {
	for _, b := range policy.Bindings {
		if b.Role != role || b.Condition != nil {
			continue
		}
		for _, existing := range b.Members {
			if existing == member {
				return true
			}
		}
	}
	return false
}
