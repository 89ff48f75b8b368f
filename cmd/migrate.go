package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/pipeline"
	"github.com/sells-group/sentiment-cli/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the sentiment table (and the reviews table on SQL drivers) if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc := cfg.Pipeline()
		schema := store.Schema{
			SourceDataset: pc.SourceDataset,
			SourceTable:   pc.SourceTable,
			DestDataset:   pc.DestDataset,
			DestTable:     pc.DestTable,
		}
		for what, name := range map[string]string{
			"dataset":      schema.SourceDataset,
			"table":        schema.SourceTable,
			"dest dataset": schema.DestDataset,
			"dest table":   schema.DestTable,
		} {
			if err := pipeline.ValidateIdentifier(what, name); err != nil {
				return fail(err)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return fail(err)
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx, schema); err != nil {
			return fail(err)
		}
		logger.Info("migrate complete",
			zap.String("driver", st.Driver()),
			zap.String("dest", st.QualifiedName(schema.DestDataset, schema.DestTable)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
