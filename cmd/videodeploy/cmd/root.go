package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	projectID  string
	region     string
	configPath string
	packageDir string
	debug      bool
	timeout    time.Duration

	logger zerolog.Logger
	cancel context.CancelFunc
	out    *printer
}

// NewRootCommand builds the videodeploy command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{out: newPrinter(stdout)}

	root := &cobra.Command{
		Use:           "videodeploy",
		Short:         "Provision and deploy the video analytics streaming pipeline on Google Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := zerolog.InfoLevel
			if opts.debug {
				level = zerolog.DebugLevel
			}
			opts.logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				opts.cancel = func() { cancel(); stop() }
			} else {
				opts.cancel = stop
			}
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.cancel != nil {
				opts.cancel()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.projectID, "project", "", "GCP project ID (overrides GCP_PROJECT)")
	flags.StringVar(&opts.region, "region", "", "GCP region (overrides GCP_REGION)")
	flags.StringVar(&opts.configPath, "config", "", "Optional YAML overlay for the deployment defaults")
	flags.StringVar(&opts.packageDir, "package-dir", "", "Directory of the pipeline package (default: current directory)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Timeout for the whole command, 0 disables it")

	root.AddCommand(
		newDeployCommand(opts),
		newVerifyCommand(opts),
		newEnvCommand(opts),
		newTeardownCommand(opts),
	)
	return root
}

// Execute runs the CLI and exits with status 1 on any failure.
func Execute() {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		newPrinter(os.Stderr).Fail("%v", err)
		os.Exit(1)
	}
}

// loadSpec builds the deployment spec from the environment, the overlay file and the flags.
func (o *rootOptions) loadSpec() (*config.DeploymentSpec, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if o.projectID != "" {
		settings.ProjectID = o.projectID
	}
	if o.region != "" {
		settings.Region = o.region
	}

	spec := config.NewDeploymentSpec(settings)
	if o.configPath != "" {
		if err := spec.ApplyOverlayFile(o.configPath); err != nil {
			return nil, err
		}
		o.logger.Debug().Str("path", o.configPath).Msg("Applied deployment overlay.")
	}
	if o.packageDir != "" {
		spec.Pipeline.PackageDir = o.packageDir
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment configuration: %w", err)
	}
	return spec, nil
}
