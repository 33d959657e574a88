package executor

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compozy/workflows/internal/postgres"
)

// ParamOrder supplies the declaration order of a task's named parameters,
// since stored procedures/functions bind positionally.
type ParamOrder func(ctx context.Context, descriptor string) ([]string, error)

// DBExecutor invokes a stored procedure or stored function against
// Postgres. The descriptor names the routine; named parameters are bound
// positionally in the order ParamOrder returns (the Task Parameter
// insertion order, per C2).
type DBExecutor struct {
	Pool       *pgxpool.Pool
	ParamOrder ParamOrder
	Procedure  bool // true => CALL, false => SELECT ... (function)
}

// NewDBExecutor builds a DBExecutor. procedure selects CALL vs SELECT
// statement shape for stored_procedure vs stored_function.
func NewDBExecutor(pool *pgxpool.Pool, order ParamOrder, procedure bool) *DBExecutor {
	return &DBExecutor{Pool: pool, ParamOrder: order, Procedure: procedure}
}

func (d *DBExecutor) Invoke(
	ctx context.Context,
	descriptor string,
	_ []any,
	named map[string]any,
) (*Outcome, error) {
	order, err := d.ParamOrder(ctx, descriptor)
	if err != nil {
		return &Outcome{Error: fmt.Sprintf("resolving parameter order: %v", err)}, nil
	}
	args := make([]any, 0, len(order))
	for _, name := range order {
		args = append(args, named[name])
	}
	sql, sqlArgs, err := d.buildStatement(descriptor, args)
	if err != nil {
		return &Outcome{Error: err.Error()}, nil
	}
	var rows []map[string]any
	if err := postgres.ScanAll(ctx, d.Pool, &rows, sql, sqlArgs...); err != nil {
		return &Outcome{Error: err.Error()}, nil
	}
	if len(rows) == 0 {
		return &Outcome{Result: map[string]any{}}, nil
	}
	return &Outcome{Result: rows[0]}, nil
}

func (d *DBExecutor) buildStatement(descriptor string, args []any) (string, []any, error) {
	shape := "SELECT * FROM %s(%s)"
	if d.Procedure {
		shape = "CALL %s(%s)"
	}
	raw := fmt.Sprintf(shape, descriptor, joinPlaceholders(len(args)))
	sql, err := squirrel.Dollar.ReplacePlaceholders(raw)
	if err != nil {
		return "", nil, fmt.Errorf("building statement: %w", err)
	}
	return sql, args, nil
}

func joinPlaceholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}
