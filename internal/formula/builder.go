package formula

import (
	"fmt"
	"strings"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

// ClientIDColumn is the roster column every built statement returns first.
const ClientIDColumn = "client_id"

// Query is a compiled statement together with the metrics it can evaluate.
type Query struct {
	binder.Statement
	Scope   Scope
	Columns []string
	Metrics []*Metric
}

// Evaluate runs every metric of q over row, keyed by metric. A nil row (the
// client was not returned) yields NoData for each metric.
func (q Query) Evaluate(row Row) map[string]model.Outcome {
	out := make(map[string]model.Outcome, len(q.Metrics))
	for _, m := range q.Metrics {
		out[m.Key] = m.Evaluate(row)
	}
	return out
}

// usedFragments returns the distinct fragments behind refs in emission order.
func usedFragments(refs []Ref) []*fragment {
	seen := make(map[*fragment]bool, len(refs))
	for _, r := range refs {
		seen[r.frag] = true
	}
	var out []*fragment
	for _, f := range fragments {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// withClause renders the roster CTE followed by one CTE per fragment.
func withClause(scope Scope, frags []*fragment) string {
	var b strings.Builder
	b.WriteString("WITH roster AS (\n\t")
	b.WriteString(scope.roster())
	b.WriteString("\n)")
	for _, f := range frags {
		fmt.Fprintf(&b, ",\n%s AS (\n\t%s\n)", f.alias, f.query(scope))
	}
	return b.String()
}

// joins renders the roster-driven LEFT JOIN of every fragment.
func joins(frags []*fragment) string {
	var b strings.Builder
	b.WriteString("FROM roster r")
	for _, f := range frags {
		fmt.Fprintf(&b, "\nLEFT JOIN %[1]s ON %[1]s.client_id = r.client_id", f.alias)
	}
	return b.String()
}

// dedupe drops repeated refs, keeping first occurrence order.
func dedupe(refs []Ref) []Ref {
	seen := make(map[Ref]bool, len(refs))
	out := make([]Ref, 0, len(refs))
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Build composes one statement selecting refs for the clients in scope. The
// roster drives the result so clients without facts still return a row.
func Build(name string, scope Scope, refs []Ref) Query {
	refs = dedupe(refs)
	frags := usedFragments(refs)

	cols := []string{ClientIDColumn}
	selects := []string{"r.client_id"}
	for _, r := range refs {
		cols = append(cols, r.Column())
		selects = append(selects, fmt.Sprintf("%s AS %s", r.expr(), r.Column()))
	}

	sql := fmt.Sprintf("%s\nSELECT %s\n%s\nORDER BY r.client_id",
		withClause(scope, frags),
		strings.Join(selects, ",\n\t"),
		joins(frags),
	)

	want := scope.params() * (1 + len(frags))
	return Query{
		Statement: binder.MustCompile(name, sql, want),
		Scope:     scope,
		Columns:   cols,
	}
}

// buildFor compiles the statement for metrics, collecting their inputs.
func buildFor(name string, scope Scope, metrics []*Metric, extra ...Ref) Query {
	var refs []Ref
	refs = append(refs, extra...)
	for _, m := range metrics {
		refs = append(refs, m.inputs...)
	}
	q := Build(name, scope, refs)
	q.Metrics = metrics
	return q
}

var (
	metricQueries = func() map[string]Query {
		out := make(map[string]Query, len(catalog))
		for _, m := range catalog {
			out[m.Key] = buildFor("metric:"+m.Key, ScopeClient, []*Metric{m})
		}
		return out
	}()

	batchQuery = buildFor("batch", ScopeClient, catalog, clientName)

	summaryQuery = func() Query {
		metrics := make([]*Metric, 0, len(SummaryKeys))
		for _, key := range SummaryKeys {
			metrics = append(metrics, byKey[key])
		}
		return buildFor("summary", ScopeAllClients, metrics, clientName)
	}()
)

// MetricQuery returns the single-client statement for one metric.
func MetricQuery(key string) (Query, error) {
	if _, err := Lookup(key); err != nil {
		return Query{}, err
	}
	return metricQueries[key], nil
}

// BatchQuery returns the single-client statement evaluating every metric.
func BatchQuery() Query {
	return batchQuery
}

// SummaryQuery returns the all-clients statement for SummaryKeys.
func SummaryQuery() Query {
	return summaryQuery
}

// ClientName reads the client name selected alongside batch and summary
// metrics.
func ClientName(row Row) string {
	e := &evaluator{row: row}
	return e.text(clientName)
}
