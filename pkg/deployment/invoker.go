package deployment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// PipelineCLI describes how to install and call the streaming job's command line tool.
type PipelineCLI struct {
	PackageDir     string
	InstallCommand []string
	EntryPoint     string
}

// SetupCommand is the entry point call that creates the job's own infrastructure.
func (c PipelineCLI) SetupCommand(env PipelineEnv) Command {
	return Command{
		Name: c.EntryPoint,
		Args: []string{"setup-infrastructure", "--project=" + env.ProjectID},
		Dir:  c.PackageDir,
		Env:  env.Environ(),
	}
}

// RunCommand is the follow-up an operator runs to start the streaming job.
func (c PipelineCLI) RunCommand(env PipelineEnv) Command {
	return Command{
		Name: c.EntryPoint,
		Args: []string{
			"run-pipeline",
			"--project=" + env.ProjectID,
			"--region=" + env.Region,
			"--input-subscription=" + env.InputSubscription,
			"--output-topic=" + env.OutputTopic,
			"--anomaly-topic=" + env.AnomalyTopic,
			"--analytics-topic=" + env.AnalyticsTopic,
			"--staging-location=" + env.StagingLocation,
			"--temp-location=" + env.TempLocation,
		},
		Dir: c.PackageDir,
		Env: env.Environ(),
	}
}

// Invoker installs the pipeline package and calls its setup command.
type Invoker struct {
	runner CommandRunner
	logger zerolog.Logger
}

// NewInvoker creates a new Invoker.
func NewInvoker(runner CommandRunner, logger zerolog.Logger) (*Invoker, error) {
	if runner == nil {
		return nil, errors.New("command runner cannot be nil")
	}
	return &Invoker{
		runner: runner,
		logger: logger.With().Str("component", "DeploymentInvoker").Logger(),
	}, nil
}

// Deploy runs the install command, then the setup command with env exported.
// On success it returns the run-pipeline command for the operator to execute next.
func (i *Invoker) Deploy(ctx context.Context, cli PipelineCLI, env PipelineEnv) (Command, error) {
	if len(cli.InstallCommand) == 0 || cli.EntryPoint == "" {
		return Command{}, errors.New("pipeline install command and entry point must be set")
	}

	install := Command{
		Name: cli.InstallCommand[0],
		Args: cli.InstallCommand[1:],
		Dir:  cli.PackageDir,
		Env:  env.Environ(),
	}
	i.logger.Info().Str("command", install.String()).Str("dir", cli.PackageDir).Msg("Installing pipeline package...")
	if out, err := i.runner.Run(ctx, install); err != nil {
		return Command{}, fmt.Errorf("pipeline install failed: %w\n%s", err, out)
	}

	setup := cli.SetupCommand(env)
	i.logger.Info().Str("command", setup.String()).Msg("Running pipeline infrastructure setup...")
	if out, err := i.runner.Run(ctx, setup); err != nil {
		return Command{}, fmt.Errorf("pipeline setup failed: %w\n%s", err, out)
	}

	i.logger.Info().Msg("Pipeline setup completed.")
	return cli.RunCommand(env), nil
}
