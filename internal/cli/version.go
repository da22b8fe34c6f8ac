package cli

import (
	"io"

	"github.com/pysugar/loanpilot/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    version.Version,
				"commit":     version.Commit,
				"build_time": version.BuildTime,
			}
			return emit(rootOpts, cmd.OutOrStdout(), info, func(w io.Writer) {
				printf(w, "loanquery %s\n", version.String())
			})
		},
	}
}
