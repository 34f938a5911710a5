package engine

import (
	"context"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/querysql"
	"github.com/roach88/restsql/internal/table"
)

// executeSQL runs a relational plan. Column names come from the plan;
// a "SELECT *" plan takes them from the driver.
func executeSQL(ctx context.Context, rec *record, plan *querysql.Plan) (*table.Table, error) {
	rows, err := rec.backend.Relational.Query(ctx, plan.Statement, plan.Args...)
	if err != nil {
		return nil, backendError(rec, err)
	}
	defer rows.Close()

	cols := plan.Columns
	if len(cols) == 0 {
		if cols, err = rows.Columns(); err != nil {
			return nil, backendError(rec, err)
		}
	}

	var out []ir.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, backendError(rec, err)
		}
		if len(vals) != len(cols) {
			return nil, ir.Errorf(ir.ErrCodeBadResponse, rec.backend.Name,
				"%s: row has %d values for %d columns", rec.name, len(vals), len(cols))
		}
		r := make(ir.Record, len(cols))
		for i, c := range cols {
			v, err := ir.FromAny(vals[i])
			if err != nil {
				return nil, ir.WrapError(ir.ErrCodeBadResponse, rec.backend.Name, rec.name+": column "+c, err)
			}
			r[c] = v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError(rec, err)
	}

	return table.New(cols, out...).Rename(plan.Aliases)
}
