package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wisdom-metrics/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wisdom",
	Short: "Wisdom Index financial metrics engine",
	Long:  "Computes client financial metrics, planning ratios and charts from the fact store, and manages versioned metric targets.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", formatTable, "output format: table, json or yaml")
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
