package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/router"
	"github.com/spf13/cobra"
)

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	var programs []string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Route a question to a script and print the result",
		Long: `Route a natural-language question to a query script and print its
output. Exits with status 1 when no script matched or the script failed.`,
		Example: `  loanquery ask "max dti across prime programs"
  loanquery ask "reserves" --program "Prime:PRMG/Prime Connect"`,
		Args: cobra.MinimumNArgs(1),
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

			res := stack.Engine.ExecuteQuery(cmd.Context(), strings.Join(args, " "), sel)
			err = emit(rootOpts, cmd.OutOrStdout(), res, func(w io.Writer) {
				if rootOpts.Verbose && res.Stdout != "" {
					printf(cmd.ErrOrStderr(), "%s\n", res.Stdout)
				}
				printf(w, "%s", res.Results)
			})
			if err != nil {
				return err
			}
			if !res.Success {
				return ErrQueryFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&programs, "program", "p", nil, "selected program as servicer:program (repeatable)")
	return cmd
}

// parseSelection parses servicer:program pairs. A value without a colon
// names a program whose servicer is inferred from its prefix.
func parseSelection(values []string) (router.Selection, error) {
	refs := make([]db.ProgramRef, 0, len(values))
	for _, v := range values {
		servicer, program, ok := strings.Cut(v, ":")
		if !ok {
			program, servicer = v, router.ServicerForProgram(v)
		}
		program = strings.TrimSpace(program)
		if program == "" {
			return router.Selection{}, fmt.Errorf("invalid program %q", v)
		}
		refs = append(refs, db.ProgramRef{Servicer: strings.TrimSpace(servicer), Program: program})
	}
	return engine.SelectionFromPrograms(refs), nil
}
