// Package formula defines the closed catalog of financial metrics.
//
// Every metric is a set of input columns drawn from shared per-table
// fragments plus a Go evaluation over those columns. Fragments render for a
// single client or for every client, so the single-metric, batch and
// all-client paths run the same column expressions and the same evaluation.
package formula

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/wisdom-metrics/internal/numeric"
)

// Scope selects which clients a statement covers.
type Scope int

const (
	// ScopeClient filters every fragment to the bound client id.
	ScopeClient Scope = iota
	// ScopeAllClients covers every client in core.clients.
	ScopeAllClients
)

func (s Scope) String() string {
	if s == ScopeAllClients {
		return "all_clients"
	}
	return "client"
}

// where returns the client filter for col.
func (s Scope) where(col string) string {
	if s == ScopeClient {
		return col + " = ?"
	}
	return "TRUE"
}

// roster returns the driving row set: the requested client, or every client.
func (s Scope) roster() string {
	if s == ScopeClient {
		return "SELECT ?::bigint AS client_id"
	}
	return "SELECT client_id FROM core.clients"
}

// params is the number of placeholders a clause contributes in scope s.
func (s Scope) params() int {
	if s == ScopeClient {
		return 1
	}
	return 0
}

// fragment is a CTE aggregating one fact table per client.
type fragment struct {
	alias  string
	fields []string
	query  func(s Scope) string
}

// Ref names one column of a fragment.
type Ref struct {
	frag  *fragment
	field string
}

// Column is the result column name the ref is selected as.
func (r Ref) Column() string {
	return r.frag.alias + "_" + r.field
}

func (r Ref) expr() string {
	return r.frag.alias + "." + r.field
}

func (f *fragment) ref(field string) Ref {
	for _, name := range f.fields {
		if name == field {
			return Ref{frag: f, field: field}
		}
	}
	panic(eris.Errorf("formula: fragment %s has no field %s", f.alias, field))
}

// Row is one result row keyed by column name.
type Row map[string]any

// evaluator reads typed inputs from a row and remembers the first coercion
// failure.
type evaluator struct {
	row Row
	err error
}

// opt returns the input and whether it was non-null.
func (e *evaluator) opt(r Ref) (float64, bool) {
	v, ok, err := numeric.Float(e.row[r.Column()])
	if err != nil {
		if e.err == nil {
			e.err = eris.Wrapf(err, "formula: column %s", r.Column())
		}
		return 0, false
	}
	return v, ok
}

// num returns the input with null read as zero.
func (e *evaluator) num(r Ref) float64 {
	v, _ := e.opt(r)
	return v
}

// sum adds inputs, reading null as zero.
func (e *evaluator) sum(refs ...Ref) float64 {
	var total float64
	for _, r := range refs {
		total += e.num(r)
	}
	return total
}

// text returns a string input, or "" when null.
func (e *evaluator) text(r Ref) string {
	switch v := e.row[r.Column()].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		if e.err == nil {
			e.err = eris.Errorf("formula: column %s: unexpected %T", r.Column(), v)
		}
		return ""
	}
}

// present reports whether a non-null value was selected for r.
func (e *evaluator) present(r Ref) bool {
	return e.row[r.Column()] != nil
}
