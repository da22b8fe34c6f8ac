package cli

import (
	"io"
	"strings"

	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/spf13/cobra"
)

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var probe string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show the model fallback chain of every tier",
		Long: `Show the model fallback chain of every tier. With --probe, send a
minimal test request down the chain of one tier and report the first
model that answers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := openStack(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer stack.Close()

			if probe != "" {
				tier, err := registry.ParseTier(probe)
				if err != nil {
					return err
				}
				model, err := stack.Engine.ProbeTier(cmd.Context(), tier)
				if err != nil {
					return err
				}
				return emit(rootOpts, cmd.OutOrStdout(), map[string]string{"tier": string(tier), "model": model}, func(w io.Writer) {
					printf(w, "%s: %s\n", tier, model)
				})
			}

			statuses := stack.Engine.ModelStatus()
			if len(statuses) == 0 {
				// without a credential only the configured chains are known
				return emit(rootOpts, cmd.OutOrStdout(), map[string]any{"llm_available": false}, func(w io.Writer) {
					printf(w, "Model routing disabled (ANTHROPIC_API_KEY not set)\n")
					for _, tier := range registry.Tiers() {
						printf(w, "%s: %s\n", tier, strings.Join(stack.Registry.Chain(tier), " → "))
					}
				})
			}
			return emit(rootOpts, cmd.OutOrStdout(), statuses, func(w io.Writer) {
				for _, s := range statuses {
					printf(w, "%s: %s\n", s.Tier, strings.Join(s.Chain, " → "))
					if s.SuccessfulModel != "" {
						printf(w, "  working: %s\n", s.SuccessfulModel)
					}
					if len(s.FailedModels) > 0 {
						printf(w, "  failed:  %s\n", strings.Join(s.FailedModels, ", "))
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&probe, "probe", "", "verify a working model of this tier (fast|balanced|powerful)")
	return cmd
}
