package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	var programs []string

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Show the routing decision for a question without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := parseSelection(programs)
			if err != nil {
				return err
			}
			stack, err := openStack(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer stack.Close()

			d, rewritten := stack.Engine.Route(cmd.Context(), strings.Join(args, " "), sel)
			out := struct {
				Decision  any    `json:"decision"`
				Rewritten string `json:"rewritten,omitempty"`
			}{d, rewritten}
			return emit(rootOpts, cmd.OutOrStdout(), out, func(w io.Writer) {
				if !d.Matched() {
					printf(w, "No script matched: %s\n", d.Error)
					return
				}
				printf(w, "Script:     %s\n", d.ScriptName)
				printf(w, "Source:     %s\n", d.Source)
				printf(w, "Confidence: %.2f\n", d.Confidence)
				if d.Model != "" {
					printf(w, "Model:      %s\n", d.Model)
				}
				if rewritten != "" {
					printf(w, "Rewritten:  %s\n", rewritten)
				}
				for _, key := range d.Parameters.Keys() {
					printf(w, "  %s = %s\n", key, strings.Join(d.Parameters.Strings(key), ", "))
				}
			})
		},
	}

	cmd.Flags().StringArrayVarP(&programs, "program", "p", nil, "selected program as servicer:program (repeatable)")
	return cmd
}
