package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/wisdom-metrics/internal/formula"
)

var chartCmd = &cobra.Command{
	Use:   "chart <chart>",
	Short: "Compute a chart for a client",
	Long:  "Computes one of the charts: " + strings.Join(formula.ChartKeys(), ", ") + ".",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		if _, err := formula.LookupChart(args[0]); err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		points := a.engine.ComputeChart(ctx, args[0], id)
		return render(os.Stdout, outputFormat(cmd), points, func(w io.Writer) {
			formatChart(w, points)
		})
	},
}

func init() {
	addClientFlag(chartCmd)
	rootCmd.AddCommand(chartCmd)
}
