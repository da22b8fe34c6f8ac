package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/embedding"
	"github.com/pysugar/loanpilot/internal/retriever"
	"github.com/spf13/cobra"
)

// NewParamsCommand creates the params command.
func NewParamsCommand(rootOpts *RootOptions) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "params [query]",
		Short: "List parameter columns, or the ones most relevant to a query",
		Long: `Without a query, list every parameter descriptor. With a query, rank
the descriptors by embedding similarity, or fall back to the static
phrase mappings when no embedding backend is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			database, err := db.InitDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer closeDB(database)

			descriptors, err := db.ListParameters(database)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return emit(rootOpts, cmd.OutOrStdout(), descriptors, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					printf(tw, "COLUMN\tDISPLAY NAME\tGROUP\n")
					for _, d := range descriptors {
						printf(tw, "%s\t%s\t%s\n", d.ColumnName, d.DisplayName, d.AttributeGroup)
					}
					tw.Flush()
				})
			}

			query := strings.Join(args, " ")
			if topK <= 0 {
				topK = cfg.RAGTopK
			}
			results, err := retrieve(cmd.Context(), cfg.Embedding(), retriever.FromMetadata(descriptors), query, topK)
			if err != nil {
				return err
			}
			if results == nil {
				columns := retriever.StaticLookup(query)
				return emit(rootOpts, cmd.OutOrStdout(), map[string]any{"available": false, "columns": columns}, func(w io.Writer) {
					printf(w, "Retrieval unavailable; static mappings:\n")
					for _, c := range columns {
						printf(w, "  %s\n", c)
					}
				})
			}
			return emit(rootOpts, cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					printf(w, "%s\n", retriever.FormatResult(r))
				}
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top", "k", 0, "number of descriptors to return (default $RAG_TOP_K)")
	return cmd
}

// retrieve ranks descriptors for query. It returns nil results when no
// embedding backend is usable.
func retrieve(ctx context.Context, cfg embedding.Config, params []retriever.Parameter, query string, k int) ([]retriever.Result, error) {
	e, err := embedding.New(cfg)
	switch {
	case errors.Is(err, embedding.ErrDisabled):
		return nil, nil
	case err != nil:
		return nil, err
	}
	r := retriever.New(ctx, e, params)
	if !r.Available() {
		return nil, nil
	}
	return r.Retrieve(ctx, query, k), nil
}
