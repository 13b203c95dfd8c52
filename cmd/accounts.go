package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wisdom-metrics/internal/history"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect client account history",
}

// -- accounts list --

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a client's accounts",
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

		accounts, err := a.history.Accounts(ctx, id)
		if err != nil {
			return eris.Wrap(err, "accounts list")
		}
		if len(accounts) == 0 && outputFormat(cmd) == formatTable {
			fmt.Fprintln(os.Stderr, "No accounts found.")
			return nil
		}
		return render(os.Stdout, outputFormat(cmd), accounts, func(w io.Writer) {
			formatAccounts(w, accounts)
		})
	},
}

func rangeFlags(cmd *cobra.Command) history.Range {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return history.Range{From: from, To: to}
}

// -- accounts history --

var accountsHistoryCmd = &cobra.Command{
	Use:   "history <account>...",
	Short: "Show account values over time",
	Long:  "With one account, shows a page of history. With several, shows the full history of each in the date range.",
	Args:  cobra.MinimumNArgs(1),
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

		if len(args) > 1 {
			all, err := a.history.Multi(ctx, id, args, rangeFlags(cmd))
			if err != nil {
				return eris.Wrap(err, "accounts history")
			}
			format := outputFormat(cmd)
			if format == formatTable {
				format = formatJSON
			}
			return render(os.Stdout, format, all, nil)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		h, err := a.history.History(ctx, id, args[0], history.Page{
			Range:  rangeFlags(cmd),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "accounts history")
		}
		return render(os.Stdout, outputFormat(cmd), h, func(w io.Writer) {
			formatHistory(w, h)
		})
	},
}

// -- accounts summary --

var accountsSummaryCmd = &cobra.Command{
	Use:   "summary <account>",
	Short: "Show statistics over an account's history",
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

		sum, err := a.history.Summary(ctx, id, args[0])
		if err != nil {
			return eris.Wrap(err, "accounts summary")
		}
		if sum == nil {
			fmt.Fprintf(os.Stderr, "No history for account %s.\n", args[0])
			return nil
		}
		return render(os.Stdout, outputFormat(cmd), sum, func(w io.Writer) {
			formatAccountSummary(w, *sum)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{accountsListCmd, accountsHistoryCmd, accountsSummaryCmd} {
		addClientFlag(c)
	}
	accountsHistoryCmd.Flags().String("from", "", "earliest date (YYYY-MM-DD)")
	accountsHistoryCmd.Flags().String("to", "", "latest date (YYYY-MM-DD)")
	accountsHistoryCmd.Flags().Int("limit", history.DefaultLimit, "page size for a single account")
	accountsHistoryCmd.Flags().Int("offset", 0, "rows to skip for a single account")

	accountsCmd.AddCommand(accountsListCmd, accountsHistoryCmd, accountsSummaryCmd)
	rootCmd.AddCommand(accountsCmd)
}
