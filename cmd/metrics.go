package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wisdom-metrics/internal/formula"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute client metrics",
	Long:  "Commands for computing single metrics, the full batch, roster summaries and the metric catalog.",
}

// -- metrics get --

var metricsGetCmd = &cobra.Command{
	Use:   "get <metric>",
	Short: "Compute one metric for a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		if _, err := formula.Lookup(args[0]); err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		withTarget, _ := cmd.Flags().GetBool("target")
		if withTarget {
			v, err := a.engine.WithTarget(ctx, args[0], id)
			if err != nil {
				return eris.Wrap(err, "metrics get")
			}
			return render(os.Stdout, outputFormat(cmd), v, func(w io.Writer) {
				formatViews(w, []model.MetricView{v})
			})
		}

		v := a.engine.Compute(ctx, args[0], id)
		result := map[string]*float64{args[0]: v}
		return render(os.Stdout, outputFormat(cmd), result, func(w io.Writer) {
			formatMetricValue(w, args[0], v)
		})
	},
}

// -- metrics all / each --

func newBatchCmd(use, short string, each bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := clientID(cmd)
			if err != nil {
				return err
			}

			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var g model.Grouped
			if each {
				g = a.engine.ComputeAllEach(ctx, id)
			} else {
				g = a.engine.ComputeAll(ctx, id)
			}
			return render(os.Stdout, outputFormat(cmd), g, func(w io.Writer) {
				formatGrouped(w, g)
			})
		},
	}
}

var (
	metricsAllCmd  = newBatchCmd("all", "Compute every metric for a client in one query", false)
	metricsEachCmd = newBatchCmd("each", "Compute every metric with one query per metric", true)
)

// -- metrics details --

var metricsDetailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Show every metric with its target and comparison",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := a.engine.Views(ctx, id)
		if err != nil {
			return eris.Wrap(err, "metrics details")
		}
		return render(os.Stdout, outputFormat(cmd), views, func(w io.Writer) {
			formatViews(w, views)
		})
	},
}

// -- metrics summary --

var metricsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show key metrics for every client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sums, err := a.engine.Summaries(ctx)
		if err != nil {
			return eris.Wrap(err, "metrics summary")
		}
		if len(sums) == 0 {
			fmt.Fprintln(os.Stderr, "No clients found.")
			return nil
		}
		return render(os.Stdout, outputFormat(cmd), sums, func(w io.Writer) {
			formatSummaries(w, sums)
		})
	},
}

// -- metrics catalog --

var metricsCatalogCmd = &cobra.Command{
	Use:   "catalog [metric]",
	Short: "List metric definitions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var metas []model.MetricMetadata
		if len(args) == 1 {
			md, ok := formula.Metadata(args[0])
			if !ok {
				return eris.Wrapf(formula.ErrUnknownMetric, "%q", args[0])
			}
			metas = append(metas, md)
		} else {
			category, _ := cmd.Flags().GetString("category")
			for _, m := range formula.All() {
				if category != "" && string(m.Category) != category {
					continue
				}
				metas = append(metas, m.MetricMetadata)
			}
		}
		return render(os.Stdout, outputFormat(cmd), metas, func(w io.Writer) {
			formatCatalog(w, metas)
		})
	},
}

// -- dashboard --

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Compute a full dashboard snapshot for a client",
	Long:  "Computes every metric, target comparison and chart for a client. Table output falls back to JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.engine.Snapshot(ctx, id)
		if err != nil {
			return eris.Wrap(err, "dashboard")
		}
		format := outputFormat(cmd)
		if format == formatTable {
			format = formatJSON
		}
		return render(os.Stdout, format, snap, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{metricsGetCmd, metricsAllCmd, metricsEachCmd, metricsDetailsCmd, dashboardCmd} {
		addClientFlag(c)
	}
	metricsGetCmd.Flags().Bool("target", false, "include the current target and comparison")
	metricsCatalogCmd.Flags().String("category", "", "only list metrics of this category")

	metricsCmd.AddCommand(metricsGetCmd, metricsAllCmd, metricsEachCmd, metricsDetailsCmd, metricsSummaryCmd, metricsCatalogCmd)
	rootCmd.AddCommand(metricsCmd, dashboardCmd)
}
