package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ppi-cli/internal/model"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup [metric]",
	Short: "Print the monthly rollup with month-over-month and year-over-year changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		metric := ""
		if len(args) == 1 {
			metric = args[0]
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.Rollup(ctx, metric)
		if err != nil {
			return eris.Wrap(err, "rollup")
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No rollup rows found.")
			return nil
		}

		formatRollupRows(os.Stdout, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollupCmd)
}

// formatRollupRows writes rollup rows as a table; changes are shown in percent.
func formatRollupRows(out io.Writer, rows []model.RollupRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MONTH\tMETRIC\tVALUE\tMOM\tYOY")
	_, _ = fmt.Fprintln(w, "-----\t------\t-----\t---\t---")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n",
			r.Month.Format("2006-01"),
			r.Metric,
			r.ValueAvg,
			formatChange(r.MoMChange),
			formatChange(r.YoYChange),
		)
	}
	_ = w.Flush()
}

func formatChange(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *v*100)
}
