package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wisdom-metrics/internal/compare"
	"github.com/sells-group/wisdom-metrics/internal/formula"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// render writes v as JSON or YAML, or calls table for the table format.
func render(w io.Writer, format string, v any, table func(io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case formatTable, "":
		table(w)
		return nil
	default:
		return eris.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatFloat(v *float64) string {
	if v == nil {
		return compare.Missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// formatMetricValue writes one computed metric.
func formatMetricValue(out io.Writer, key string, v *float64) {
	md, _ := formula.Metadata(key)
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "METRIC\tTITLE\tVALUE\tFORMATTED")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, md.Title, formatFloat(v), compare.FormatValue(md.Category, v))
	_ = w.Flush()
}

// formatGrouped writes a batch result grouped by category.
func formatGrouped(out io.Writer, g model.Grouped) {
	groups := compare.FormatGrouped(g, catalogKeys(), formula.Metadata)
	w := newTable(out)
	for i, grp := range groups {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "%s\n", grp.Title)
		for _, m := range grp.Metrics {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", m.Title, m.Formatted, m.Full)
		}
	}
	_ = w.Flush()
}

// catalogKeys returns metric keys in catalog order.
func catalogKeys() []string {
	all := formula.All()
	keys := make([]string, len(all))
	for i, m := range all {
		keys[i] = m.Key
	}
	return keys
}

// formatViews writes metrics next to their targets.
func formatViews(out io.Writer, views []model.MetricView) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "METRIC\tCATEGORY\tVALUE\tTARGET\tSTATUS\tDEVIATION")
	_, _ = fmt.Fprintln(w, "------\t--------\t-----\t------\t------\t---------")
	for _, v := range views {
		target := compare.FormatValue(v.Metadata.Category, v.Target)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Key,
			v.Metadata.Category,
			v.Formatted,
			target,
			v.Comparison.Status,
			v.Comparison.DisplayText,
		)
	}
	_ = w.Flush()
}

// formatSummaries writes the roster view.
func formatSummaries(out io.Writer, sums []model.ClientSummary) {
	w := newTable(out)
	header := "CLIENT\tNAME"
	for _, k := range formula.SummaryKeys {
		header += "\t" + k
	}
	_, _ = fmt.Fprintln(w, header)
	for _, s := range sums {
		line := fmt.Sprintf("%d\t%s", s.ClientID, s.Name)
		for _, k := range formula.SummaryKeys {
			md, _ := formula.Metadata(k)
			line += "\t" + compare.FormatValue(md.Category, s.Metrics[k])
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_ = w.Flush()
}

// formatCatalog writes the static metric catalog.
func formatCatalog(out io.Writer, metas []model.MetricMetadata) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "KEY\tTITLE\tCATEGORY\tFORMULA")
	for _, m := range metas {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Key, m.Title, m.Category, m.Formula)
	}
	_ = w.Flush()
}

// formatChart writes chart points.
func formatChart(out io.Writer, points []model.ChartPoint) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "CATEGORY\tAMOUNT")
	for _, p := range points {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p.Category, formatFloat(p.Amount))
	}
	_ = w.Flush()
}

// formatTargets writes current targets sorted by metric.
func formatTargets(out io.Writer, targets map[string]float64) {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := newTable(out)
	_, _ = fmt.Fprintln(w, "METRIC\tTARGET\tFORMATTED")
	for _, k := range keys {
		v := targets[k]
		md, _ := formula.Metadata(k)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", k, formatFloat(&v), compare.FormatValue(md.Category, &v))
	}
	_ = w.Flush()
}

// formatTargetHistory writes target rows newest first.
func formatTargetHistory(out io.Writer, recs []model.TargetRecord) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "ID\tMETRIC\tTARGET\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------")
	for _, r := range recs {
		v := r.Value
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Metric, formatFloat(&v), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

// formatAccounts writes the account list.
func formatAccounts(out io.Writer, accounts []model.Account) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tNAME\tTYPE\tCURRENT\tFROM\tTO\tRECORDS")
	for _, a := range accounts {
		v := a.CurrentValue
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			a.AccountID, a.Name, a.Type,
			compare.FormatFull(model.CategoryAssets, &v),
			a.StartDate, a.EndDate, a.TotalRecords,
		)
	}
	_ = w.Flush()
}

// formatHistory writes a page of account history.
func formatHistory(out io.Writer, h model.AccountHistory) {
	w := newTable(out)
	_, _ = fmt.Fprintln(w, "DATE\tVALUE")
	for _, p := range h.History {
		v := p.Value
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p.AsOfDate, compare.FormatFull(model.CategoryAssets, &v))
	}
	_, _ = fmt.Fprintf(w, "\nshowing %d-%d of %d\n", h.Pagination.Offset+1, h.Pagination.Offset+len(h.History), h.Pagination.Total)
	_ = w.Flush()
}

// formatAccountSummary writes account statistics.
func formatAccountSummary(out io.Writer, s model.AccountSummary) {
	money := func(v float64) string { return compare.FormatFull(model.CategoryAssets, &v) }
	w := newTable(out)
	_, _ = fmt.Fprintf(w, "First date\t%s\n", s.FirstDate)
	_, _ = fmt.Fprintf(w, "Last date\t%s\n", s.LastDate)
	_, _ = fmt.Fprintf(w, "Records\t%d\n", s.TotalRecords)
	_, _ = fmt.Fprintf(w, "Current\t%s\n", money(s.CurrentValue))
	_, _ = fmt.Fprintf(w, "Min\t%s\n", money(s.MinValue))
	_, _ = fmt.Fprintf(w, "Max\t%s\n", money(s.MaxValue))
	_, _ = fmt.Fprintf(w, "Average\t%s\n", money(s.AverageValue))
	_ = w.Flush()
}

// formatRecords writes tabular query results with columns in first-row
// key order, sorted.
func formatRecords(out io.Writer, recs []model.Record) {
	if len(recs) == 0 {
		return
	}
	cols := make([]string, 0, len(recs[0]))
	for c := range recs[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	w := newTable(out)
	for i, c := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, c)
	}
	_, _ = fmt.Fprintln(w)
	for _, rec := range recs {
		for i, c := range cols {
			if i > 0 {
				_, _ = fmt.Fprint(w, "\t")
			}
			_, _ = fmt.Fprintf(w, "%v", rec[c])
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()
}
