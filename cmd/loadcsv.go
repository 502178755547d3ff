package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/pipeline"
)

var loadCSVCmd = &cobra.Command{
	Use:   "load-csv [path]",
	Short: "Load a CSV export into the store",
	Long:  "Loads a date,metric,value,is_preliminary CSV into the store. Defaults to output.import_path.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Output.ImportPath
		if len(args) == 1 {
			path = args[0]
		}

		p, err := newPipeline(cfg, false)
		if err != nil {
			return err
		}

		records, stats, err := pipeline.ReadCSVFile(path)
		if err != nil {
			return eris.Wrap(err, "load-csv")
		}
		zap.L().Info("csv parsed",
			zap.String("path", path),
			zap.Int("rows", stats.Rows),
			zap.Int("skipped", stats.Skipped),
		)

		result, err := p.LoadDataset(cmd.Context(), pipeline.DatasetFromRecords("csv", records))
		if err != nil {
			return eris.Wrap(err, "load-csv")
		}

		fmt.Fprintf(os.Stdout, "Loaded %d rows from %s (%d skipped), run %s\n",
			result.RowsLoaded, path, stats.Skipped, result.RunID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCSVCmd)
}
