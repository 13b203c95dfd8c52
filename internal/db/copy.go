package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table splits a dotted name such as "core.metric_targets" into a quoted
// pgx identifier.
func Table(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

// CopyInto appends rows to table with the COPY protocol and returns the number
// of rows written. Pass a pgx.Tx as q to make the copy part of a transaction.
func CopyInto(ctx context.Context, q Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, eris.Errorf("db: copy into %s: row %d has %d values, want %d", table, i, len(r), len(columns))
		}
	}

	n, err := q.CopyFrom(ctx, Table(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}
	return n, nil
}
