package main

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run an ad-hoc formula template for a client",
	Long: `Runs a SQL template against the fact store. Every "?" is bound to the
client id; use "??" for a literal question mark.`,
}

// queryTemplate reads the template from --sql or --file.
func queryTemplate(cmd *cobra.Command) (binder.Statement, error) {
	sql, _ := cmd.Flags().GetString("sql")
	file, _ := cmd.Flags().GetString("file")
	switch {
	case sql != "" && file != "":
		return binder.Statement{}, eris.New("use either --sql or --file, not both")
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return binder.Statement{}, eris.Wrap(err, "read template")
		}
		sql = string(raw)
	case sql == "":
		return binder.Statement{}, eris.New("--sql or --file is required")
	}
	st := binder.Compile("adhoc", strings.TrimSpace(sql))
	zap.L().Debug("query: compiled template", zap.Int("params", st.Params))
	return st, nil
}

// -- query scalar --

var queryScalarCmd = &cobra.Command{
	Use:   "scalar",
	Short: "Return the first column of the first row as a number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		st, err := queryTemplate(cmd)
		if err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out := a.exec.Scalar(ctx, st, id)
		if out.Kind == model.KindError {
			zap.L().Warn("query scalar failed", zap.String("kind", string(out.ErrorKind)), zap.Error(out.Err))
		}
		v := out.Ptr()
		return render(os.Stdout, outputFormat(cmd), map[string]*float64{"value": v}, func(w io.Writer) {
			_, _ = io.WriteString(w, formatFloat(v)+"\n")
		})
	},
}

// -- query table --

var queryTableCmd = &cobra.Command{
	Use:   "table",
	Short: "Return every row with numeric values normalized",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := clientID(cmd)
		if err != nil {
			return err
		}
		st, err := queryTemplate(cmd)
		if err != nil {
			return err
		}

		a, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		recs := a.exec.Records(ctx, st, id)
		return render(os.Stdout, outputFormat(cmd), recs, func(w io.Writer) {
			formatRecords(w, recs)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{queryScalarCmd, queryTableCmd} {
		addClientFlag(c)
		c.Flags().String("sql", "", "SQL template")
		c.Flags().String("file", "", "file containing the SQL template")
	}
	queryCmd.AddCommand(queryScalarCmd, queryTableCmd)
	rootCmd.AddCommand(queryCmd)
}
