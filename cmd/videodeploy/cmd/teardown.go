package cmd

import (
	"errors"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/config"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/orchestration"
	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("teardown deletes the subscription, topics and buckets; pass --yes to confirm")

func newTeardownCommand(opts *rootOptions) *cobra.Command {
	var (
		yes            bool
		deleteIdentity bool
	)

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Delete the subscription, topics and buckets created by deploy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
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
			opts.out.Warn("Tearing down resources in %s", opts.out.Bold(spec.ProjectID))
			if err := conductor.Teardown(ctx, deleteIdentity); err != nil {
				return err
			}
			opts.out.Success("Teardown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	cmd.Flags().BoolVar(&deleteIdentity, "delete-identity", false, "Also delete the pipeline service account")
	return cmd
}
