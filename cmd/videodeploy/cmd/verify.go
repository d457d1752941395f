package cmd

import (
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/orchestration"
	"github.com/spf13/cobra"
)

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that APIs, identity, buckets, topics and the subscription match the deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := opts.loadSpec()
			if err != nil {
				return err
			}
			if err := config.CheckProject(spec.ProjectID); err != nil {
				return err
			}

			ctx := cmd.Context()
			clients, err := orchestration.NewGoogleClients(ctx, spec, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = clients.Close() }()

			conductor, err := orchestration.NewConductor(spec, clients.Managers, opts.logger, orchestration.ConductorOptions{})
			if err != nil {
				return err
			}
			if err := conductor.Verify(ctx); err != nil {
				return err
			}
			opts.out.Success("Deployment in %s matches the expected configuration", opts.out.Bold(spec.ProjectID))
			return nil
		},
	}
}
