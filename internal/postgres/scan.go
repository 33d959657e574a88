package postgres

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
)

// ScanOne uses scany to load a single row into dest.
func ScanOne[T any](ctx context.Context, q pgxscan.Querier, dest *T, sql string, args ...any) error {
	return pgxscan.Get(ctx, q, dest, sql, args...)
}

// ScanAll uses scany to load every matching row into a slice.
func ScanAll[T any](ctx context.Context, q pgxscan.Querier, dest *[]T, sql string, args ...any) error {
	return pgxscan.Select(ctx, q, dest, sql, args...)
}
