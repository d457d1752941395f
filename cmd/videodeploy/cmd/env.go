package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnvCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the environment the pipeline is run with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := opts.loadSpec()
			if err != nil {
				return err
			}
			env := spec.PipelineEnv()
			if output == "" {
				dotEnv, err := env.DotEnv()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), dotEnv)
				return err
			}
			if err := env.WriteDotEnv(output); err != nil {
				return err
			}
			opts.out.Success("Wrote pipeline environment to %s", opts.out.Bold(output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write a .env file instead of printing")
	return cmd
}
