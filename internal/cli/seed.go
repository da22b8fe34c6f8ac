package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the database and load programs from a YAML file",
		Long: `Create the database tables, parameter metadata and script registry,
then upsert programs from a YAML seed file. Without --file the bundled
sample programs are loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			var seed *db.ProgramSeed
			if file != "" {
				seed, err = db.LoadProgramSeed(file)
			} else {
				seed, err = db.SampleProgramSeed()
			}
			if err != nil {
				return err
			}

			database, err := db.InitDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer closeDB(database)

			n, err := db.ApplyProgramSeed(database, seed)
			if err != nil {
				return fmt.Errorf("apply seed: %w", err)
			}
			return emit(rootOpts, cmd.OutOrStdout(), map[string]any{"db": cfg.DBPath, "programs": n}, func(w io.Writer) {
				printf(w, "Seeded %d programs into %s\n", n, cfg.DBPath)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "program seed YAML file (default: bundled sample)")
	return cmd
}

func closeDB(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("⚠️ Failed to close database: %v", err)
	}
}
