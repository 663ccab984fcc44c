// Package integration runs ad-hoc queries against the campus integration database.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
)

// DAO returns query results as column maps.
type DAO struct {
	db     db.Querier
	logger *slog.Logger
}

// NewDAO constructs a DAO over the integration pool.
func NewDAO(q db.Querier, logger *slog.Logger) *DAO {
	if logger == nil {
		logger = slog.Default()
	}
	return &DAO{db: q, logger: logger}
}

// Records runs sql with args. Column names are upper-cased.
func (d *DAO) Records(ctx context.Context, sql string, args ...any) ([]Record, error) {
	d.logger.DebugContext(ctx, "integration query", slog.String("sql", sql), slog.Int("params", len(args)))
	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("integration: query: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("integration: collect: %w", err)
	}
	records := make([]Record, len(raw))
	for i, m := range raw {
		rec := make(Record, len(m))
		for k, v := range m {
			rec[strings.ToUpper(k)] = v
		}
		records[i] = rec
	}
	d.logger.DebugContext(ctx, "integration query done", slog.Int("records", len(records)))
	return records, nil
}
