package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage client metric targets",
	Long:  "Targets are versioned: setting a value appends a row, and the most recent row is the current target.",
}

// parseAssignments turns metric=value arguments into a target map. A
// repeated metric keeps its last value.
func parseAssignments(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, eris.Errorf("expected metric=value, got %q", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse target %s", key)
		}
		out[key] = v
	}
	return out, nil
}

// -- targets list --

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current targets for a client",
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

		targets := a.engine.Targets().GetAll(ctx, id)
		if len(targets) == 0 && outputFormat(cmd) == formatTable {
			fmt.Fprintln(os.Stderr, "No targets set.")
			return nil
		}
		return render(os.Stdout, outputFormat(cmd), targets, func(w io.Writer) {
			formatTargets(w, targets)
		})
	},
}

// -- targets set --

var targetsSetCmd = &cobra.Command{
	Use:   "set <metric=value>...",
	Short: "Set one or more targets",
	Long:  "Appends a row for every metric whose value differs from its current target. Unchanged values are not written.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		targets, err := parseAssignments(args)
		if err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.Targets().Apply(ctx, id, targets)
		if err != nil {
			return eris.Wrap(err, "targets set")
		}
		zap.L().Info("targets set", zap.Int64("client_id", id), zap.Int("appended", n), zap.Int("requested", len(targets)))
		fmt.Fprintf(os.Stdout, "%d of %d targets changed\n", n, len(targets))
		return nil
	},
}

// -- targets delete --

var targetsDeleteCmd = &cobra.Command{
	Use:   "delete <metric>",
	Short: "Delete the current target of a metric, restoring the previous one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		ok, err := a.engine.Targets().Remove(ctx, id, args[0])
		if err != nil {
			return eris.Wrap(err, "targets delete")
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "No target set for %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "Deleted current target for %s\n", args[0])
		return nil
	},
}

// -- targets clear --

var targetsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole target history of a client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		metric, _ := cmd.Flags().GetString("metric")

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.Targets().Clear(ctx, id, metric)
		if err != nil {
			return eris.Wrap(err, "targets clear")
		}
		fmt.Fprintf(os.Stdout, "Deleted %d target rows\n", n)
		return nil
	},
}

// -- targets history --

var targetsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show target history, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		metric, _ := cmd.Flags().GetString("metric")

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.engine.Targets().History(ctx, id, metric)
		if err != nil {
			return eris.Wrap(err, "targets history")
		}
		return render(os.Stdout, outputFormat(cmd), recs, func(w io.Writer) {
			formatTargetHistory(w, recs)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{targetsListCmd, targetsSetCmd, targetsDeleteCmd, targetsClearCmd, targetsHistoryCmd} {
		addClientFlag(c)
	}
	targetsClearCmd.Flags().String("metric", "", "only clear this metric")
	targetsHistoryCmd.Flags().String("metric", "", "only show this metric")

	targetsCmd.AddCommand(targetsListCmd, targetsSetCmd, targetsDeleteCmd, targetsClearCmd, targetsHistoryCmd)
	rootCmd.AddCommand(targetsCmd)
}
