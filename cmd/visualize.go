package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/chart"
	"github.com/sells-group/ppi-cli/internal/pipeline"
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Export the stored data and render the supply-chain pressure chart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("component", "visualize"))

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.Records(ctx)
		if err != nil {
			return eris.Wrap(err, "visualize: read records")
		}
		if len(records) == 0 {
			return eris.New("visualize: store is empty, run `ppi run` first")
		}

		if err := pipeline.WriteCSVFile(cfg.Output.CSVPath, records); err != nil {
			return err
		}
		xlsxPath := filepath.Join(cfg.Output.Dir, "ppi_data_export.xlsx")
		if err := pipeline.WriteXLSX(xlsxPath, records); err != nil {
			return err
		}
		log.Info("data exported", zap.String("csv", cfg.Output.CSVPath), zap.String("xlsx", xlsxPath), zap.Int("records", len(records)))

		rollup, err := st.Rollup(ctx, "")
		if err != nil {
			return eris.Wrap(err, "visualize: read rollup")
		}
		summaries := chart.StageSummaries(rollup, cfg.Chart)
		if len(summaries) == 0 {
			log.Warn("no stage metrics in the store, skipping chart")
			return nil
		}

		paths, err := chart.RenderPressure(summaries, cfg.Output.Dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s, %s, %s and %s\n", cfg.Output.CSVPath, xlsxPath, paths.PNG, paths.HTML)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
}
