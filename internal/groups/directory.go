package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/principal"
)

// ErrNotFound reports an identifier naming neither a group nor a person.
var ErrNotFound = fmt.Errorf("groups: %w", httpx.ErrNotFound)

// Directory looks groups and people up for display.
type Directory struct {
	db db.Querier
}

// NewDirectory constructs a Directory.
func NewDirectory(q db.Querier) *Directory {
	return &Directory{db: q}
}

const (
	groupEntitySQL  = `SELECT group_key, name, 'group' FROM up_group WHERE group_key = $1`
	personEntitySQL = `SELECT username, COALESCE(NULLIF(display_name, ''), username), 'user' FROM up_person WHERE username = $1`
	anyEntitySQL    = `SELECT id, name, kind FROM (
		SELECT group_key AS id, name, 'group' AS kind, 0 AS rank FROM up_group WHERE group_key = $1
		UNION ALL
		SELECT username, COALESCE(NULLIF(display_name, ''), username), 'user', 1 FROM up_person WHERE username = $1
	) e ORDER BY rank LIMIT 1`
)

// Resolve accepts "group:key", "user:key" or a bare key. A bare key is looked up as a
// group first, then as a person.
func (d *Directory) Resolve(ctx context.Context, identifier string) (principal.Entity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return principal.Entity{}, ErrNotFound
	}
	query, key := anyEntitySQL, identifier
	if prefix, rest, ok := strings.Cut(identifier, ":"); ok {
		if kind, known := principal.ParseKind(prefix); known {
			key = rest
			query = groupEntitySQL
			if kind == principal.KindUser {
				query = personEntitySQL
			}
		}
	}

	var (
		entity principal.Entity
		kind   string
	)
	if err := d.db.QueryRow(ctx, query, key).Scan(&entity.ID, &entity.Name, &kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return principal.Entity{}, ErrNotFound
		}
		return principal.Entity{}, fmt.Errorf("groups: resolve %s: %w", identifier, err)
	}
	entity.Kind = principal.Kind(kind)
	return entity, nil
}
