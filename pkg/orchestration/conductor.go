package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/iam"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/prerequisites"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Step names, in execution order.
const (
	StepPrerequisites = "prerequisites"
	StepAPIs          = "apis"
	StepIdentity      = "identity"
	StepStorage       = "storage"
	StepMessaging     = "messaging"
	StepDeploy        = "deploy"
)

// PrerequisiteChecker validates the local environment.
type PrerequisiteChecker interface {
	Check(ctx context.Context, projectID string) (prerequisites.CheckResult, error)
}

// APIEnabler enables and verifies service APIs.
type APIEnabler interface {
	EnableAll(ctx context.Context, projectID string, apis []string) ([]servicemanager.Outcome, error)
	VerifyEnabled(ctx context.Context, projectID string, apis []string) error
}

// IdentityProvisioner manages the pipeline identity and its grants.
type IdentityProvisioner interface {
	ProvisionIdentity(ctx context.Context, spec iam.ServiceAccountSpec) (string, []servicemanager.Outcome, error)
	ApplyBindings(ctx context.Context, bindings []iam.IAMBinding, member string) ([]servicemanager.Outcome, error)
	ProjectNumber(ctx context.Context) (string, error)
	VerifyIdentity(ctx context.Context, spec iam.ServiceAccountSpec, email string) error
	DeleteIdentity(ctx context.Context, email string) error
}

// PipelineDeployer installs the pipeline package and runs its setup command.
type PipelineDeployer interface {
	Deploy(ctx context.Context, cli deployment.PipelineCLI, env deployment.PipelineEnv) (deployment.Command, error)
}

// Managers are the collaborators a Conductor drives.
type Managers struct {
	Checker   PrerequisiteChecker
	APIs      APIEnabler
	Identity  IdentityProvisioner
	Storage   servicemanager.IStorageManager
	Messaging servicemanager.IMessagingManager
	Deployer  PipelineDeployer
}

func (m Managers) validate() error {
	var missing []string
	if m.Checker == nil {
		missing = append(missing, "Checker")
	}
	if m.APIs == nil {
		missing = append(missing, "APIs")
	}
	if m.Identity == nil {
		missing = append(missing, "Identity")
	}
	if m.Storage == nil {
		missing = append(missing, "Storage")
	}
	if m.Messaging == nil {
		missing = append(missing, "Messaging")
	}
	if m.Deployer == nil {
		missing = append(missing, "Deployer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("conductor is missing managers: %v", missing)
	}
	return nil
}

// ConductorOptions tune a deployment run.
type ConductorOptions struct {
	// SkipSetup leaves out the pipeline install and setup. The follow-up command is still produced.
	SkipSetup bool
	// Observer, if set, receives step state changes.
	Observer func(StepEvent)
}

// DeployResult is everything a successful or failed run produced.
type DeployResult struct {
	Report              *Report
	ServiceAccountEmail string
	Env                 deployment.PipelineEnv
	FollowUp            deployment.Command
}

// Conductor runs the six deployment steps for one DeploymentSpec.
type Conductor struct {
	spec     *config.DeploymentSpec
	managers Managers
	planner  *iam.RolePlanner
	apis     *prerequisites.PrerequisitePlanner
	opts     ConductorOptions
	logger   zerolog.Logger
}

// NewConductor validates the deployment and creates a Conductor.
func NewConductor(spec *config.DeploymentSpec, managers Managers, logger zerolog.Logger, opts ConductorOptions) (*Conductor, error) {
	if spec == nil {
		return nil, errors.New("deployment spec cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment spec: %w", err)
	}
	if err := managers.validate(); err != nil {
		return nil, err
	}
	return &Conductor{
		spec:     spec,
		managers: managers,
		planner:  iam.NewRolePlanner(logger),
		apis:     prerequisites.NewPlanner(),
		opts:     opts,
		logger:   logger.With().Str("component", "Conductor").Logger(),
	}, nil
}

// requiredAPIs is the ordered API list for this spec.
func (c *Conductor) requiredAPIs() []string {
	return c.apis.PlanRequiredServices(c.spec.APIs, c.spec.Resources())
}

// Run executes the workflow: prerequisites, apis, identity, storage, messaging, deploy.
// It stops at the first failing step and leaves everything already provisioned in place.
func (c *Conductor) Run(ctx context.Context) (*DeployResult, error) {
	runID := uuid.NewString()
	log := c.logger.With().Str("run_id", runID).Str("project_id", c.spec.ProjectID).Logger()
	log.Info().Msg("Starting video analytics deployment...")

	resources := c.spec.Resources()
	env := c.spec.PipelineEnv()
	result := &DeployResult{Env: env, FollowUp: c.spec.Pipeline.RunCommand(env)}

	steps := []Step{
		{
			Name: StepPrerequisites,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				checked, err := c.managers.Checker.Check(ctx, c.spec.ProjectID)
				if err != nil {
					return nil, err
				}
				log.Info().Str("account", checked.ActiveAccount).Msg("Running as active gcloud account.")
				return nil, nil
			},
		},
		{
			Name: StepAPIs,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				return c.managers.APIs.EnableAll(ctx, c.spec.ProjectID, c.requiredAPIs())
			},
		},
		{
			Name: StepIdentity,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				email, outcomes, err := c.managers.Identity.ProvisionIdentity(ctx, c.spec.ServiceAccount)
				result.ServiceAccountEmail = email
				return outcomes, err
			},
		},
		{
			Name: StepStorage,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				outcomes, err := c.managers.Storage.CreateResources(ctx, resources)
				if err != nil {
					return outcomes, err
				}
				// Granted on every run, including for buckets that already existed.
				member := iam.ServiceAccountMember(result.ServiceAccountEmail)
				grants, err := c.managers.Identity.ApplyBindings(ctx, c.planner.PlanBucketBindings(resources), member)
				return append(outcomes, grants...), err
			},
		},
		{
			Name: StepMessaging,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				outcomes, err := c.managers.Messaging.CreateResources(ctx, resources)
				if err != nil || !c.spec.DeadLetterAgentGrants {
					return outcomes, err
				}
				number, err := c.managers.Identity.ProjectNumber(ctx)
				if err != nil {
					return outcomes, fmt.Errorf("failed to look up project number for the Pub/Sub service agent: %w", err)
				}
				agent := iam.ServiceAccountMember(iam.PubSubServiceAgent(number))
				grants, err := c.managers.Identity.ApplyBindings(ctx, c.planner.PlanDeadLetterBindings(resources), agent)
				return append(outcomes, grants...), err
			},
		},
		{
			Name: StepDeploy,
			Skip: c.opts.SkipSetup,
			Run: func(ctx context.Context) ([]servicemanager.Outcome, error) {
				followUp, err := c.managers.Deployer.Deploy(ctx, c.spec.Pipeline, env)
				if err != nil {
					return []servicemanager.Outcome{servicemanager.FailedOutcome("pipeline/"+c.spec.Pipeline.EntryPoint, err)}, err
				}
				result.FollowUp = followUp
				return []servicemanager.Outcome{servicemanager.AppliedOutcome("pipeline/" + c.spec.Pipeline.EntryPoint)}, nil
			},
		},
	}

	report, err := NewRunner(log, c.opts.Observer).Run(ctx, runID, steps)
	result.Report = report
	if err != nil {
		return result, err
	}
	log.Info().
		Int("created", report.Count(servicemanager.Created)).
		Int("already_exists", report.Count(servicemanager.AlreadyExists)).
		Int("applied", report.Count(servicemanager.Applied)).
		Msg("Deployment completed successfully.")
	return result, nil
}

// Verify checks every provisioned resource against the deployment and reports all problems found.
func (c *Conductor) Verify(ctx context.Context) error {
	if err := config.CheckProject(c.spec.ProjectID); err != nil {
		return err
	}
	c.logger.Info().Msg("Verifying deployment...")
	resources := c.spec.Resources()
	var errs []error

	if err := c.managers.APIs.VerifyEnabled(ctx, c.spec.ProjectID, c.requiredAPIs()); err != nil {
		errs = append(errs, err)
	}
	if err := c.managers.Identity.VerifyIdentity(ctx, c.spec.ServiceAccount, c.spec.ServiceAccountEmail()); err != nil {
		errs = append(errs, err)
	}
	if err := c.managers.Storage.Verify(ctx, resources); err != nil {
		errs = append(errs, err)
	}
	if err := c.managers.Messaging.Verify(ctx, resources); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("verification failed: %w", errors.Join(errs...))
	}
	c.logger.Info().Msg("Deployment verified.")
	return nil
}

// Teardown deletes the subscription, topics and buckets, in that order. The identity is
// removed only when deleteIdentity is set. APIs are never disabled.
func (c *Conductor) Teardown(ctx context.Context, deleteIdentity bool) error {
	if err := config.CheckProject(c.spec.ProjectID); err != nil {
		return err
	}
	c.logger.Info().Msg("--- Starting teardown ---")
	resources := c.spec.Resources()
	var errs []error

	if err := c.managers.Messaging.Teardown(ctx, resources); err != nil {
		c.logger.Error().Err(err).Msg("Messaging teardown failed")
		errs = append(errs, err)
	}
	if err := c.managers.Storage.Teardown(ctx, resources); err != nil {
		c.logger.Error().Err(err).Msg("Storage teardown failed")
		errs = append(errs, err)
	}
	if deleteIdentity {
		if err := c.managers.Identity.DeleteIdentity(ctx, c.spec.ServiceAccountEmail()); err != nil {
			c.logger.Error().Err(err).Msg("Identity teardown failed")
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("teardown failed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	c.logger.Info().Msg("--- Teardown complete ---")
	return nil
}
