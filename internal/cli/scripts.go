package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/spf13/cobra"
)

// NewScriptsCommand creates the scripts command.
func NewScriptsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List registered query scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := openStack(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer stack.Close()

			list, err := stack.Engine.Scripts()
			if err != nil {
				return err
			}
			return emit(rootOpts, cmd.OutOrStdout(), list, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				printf(tw, "NAME\tDESCRIPTION\tPROMPT\n")
				for _, s := range list {
					printf(tw, "%s\t%s\t%s\n", s.Name, s.Description, s.Prompt)
				}
				tw.Flush()
			})
		},
	}

	cmd.AddCommand(newScriptsRunCommand(rootOpts))
	return cmd
}

func newScriptsRunCommand(rootOpts *RootOptions) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:     "run <name>",
		Short:   "Run a script with explicit parameters",
		Example: `  loanquery scripts run get_program_parameter --param loan_servicer=Prime --param "program_name=PRMG/Prime Connect" --param param_name=reserves`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseParams(params)
			if err != nil {
				return err
			}
			stack, err := openStack(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer stack.Close()

			res := stack.Engine.ExecuteScript(cmd.Context(), args[0], parsed)
			if err := emit(rootOpts, cmd.OutOrStdout(), res, func(w io.Writer) {
				printf(w, "%s", res.Results)
			}); err != nil {
				return err
			}
			if !res.Success {
				return ErrQueryFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter as key=value; repeat a key to build a list")
	return cmd
}

// parseParams turns key=value pairs into script parameters. A repeated
// key yields a list.
func parseParams(pairs []string) (scripts.Params, error) {
	out := scripts.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", pair)
		}
		value = strings.TrimSpace(value)
		switch existing := out[key].(type) {
		case nil:
			out[key] = value
		case string:
			out[key] = []string{existing, value}
		case []string:
			out[key] = append(existing, value)
		}
	}
	return out, nil
}
