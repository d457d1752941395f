package cmd

import (
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/orchestration"
	"github.com/spf13/cobra"
)

func newDeployCommand(opts *rootOptions) *cobra.Command {
	var skipSetup bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Check prerequisites, enable APIs, then provision identity, storage and messaging and run the pipeline setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := opts.loadSpec()
			if err != nil {
				return err
			}
			// No client is created for an unconfigured project.
			if err := config.CheckProject(spec.ProjectID); err != nil {
				return &orchestration.StepError{Step: orchestration.StepPrerequisites, Err: err}
			}

			ctx := cmd.Context()
			clients, err := orchestration.NewGoogleClients(ctx, spec, opts.logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := clients.Close(); closeErr != nil {
					opts.logger.Warn().Err(closeErr).Msg("Failed to close Google Cloud clients.")
				}
			}()

			conductor, err := orchestration.NewConductor(spec, clients.Managers, opts.logger, orchestration.ConductorOptions{
				SkipSetup: skipSetup,
				Observer:  opts.out.StepEvent,
			})
			if err != nil {
				return err
			}

			opts.out.Info("Deploying to project %s in %s", opts.out.Bold(spec.ProjectID), spec.Region)
			result, err := conductor.Run(ctx)
			if result != nil && result.Report != nil {
				opts.out.Summary(result.Report)
			}
			if err != nil {
				return err
			}

			opts.out.Success("Infrastructure is ready. Service account: %s", result.ServiceAccountEmail)
			opts.out.NextCommand(result.FollowUp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipSetup, "skip-setup", false, "Provision resources but do not install or set up the pipeline package")
	return cmd
}
