package permissions

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
	"github.com/campusportal/portal-rest/internal/principal"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore reads permission records from PostgreSQL.
type PGStore struct {
	db db.Querier
}

// NewPGStore constructs a store over the given pool or transaction.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{db: q}
}

// Select returns every record matching filter. Unset filter fields match anything.
func (s *PGStore) Select(ctx context.Context, filter Filter) ([]Record, error) {
	query, args, err := selectQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("permissions: build select: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("permissions: select: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec  Record
			kind string
		)
		if err := row.Scan(&rec.Owner, &kind, &rec.Principal.Key, &rec.Activity, &rec.Target, &rec.Type); err != nil {
			return Record{}, err
		}
		rec.Principal.Kind = principal.Kind(kind)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("permissions: scan: %w", err)
	}
	return records, nil
}

func selectQuery(filter Filter) (string, []any, error) {
	builder := psql.
		Select("owner", "principal_type", "principal_key", "activity", "target", "permission_type").
		From("up_permission")
	if filter.Owner != "" {
		builder = builder.Where(sq.Eq{"owner": filter.Owner})
	}
	if filter.Activity != "" {
		builder = builder.Where(sq.Eq{"activity": filter.Activity})
	}
	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"permission_type": filter.Type})
	}
	if len(filter.Principals) > 0 {
		anyOf := make(sq.Or, 0, len(filter.Principals))
		for _, p := range filter.Principals {
			anyOf = append(anyOf, sq.And{
				sq.Eq{"principal_type": string(p.Kind)},
				sq.Eq{"principal_key": p.Key},
			})
		}
		builder = builder.Where(anyOf)
	}
	if len(filter.Targets) > 0 {
		builder = builder.Where(sq.Eq{"target": filter.Targets})
	}
	return builder.OrderBy("owner", "activity", "target", "principal_type", "principal_key").ToSql()
}
