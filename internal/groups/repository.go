// Package groups resolves the portal group hierarchy and group/person display entities.
package groups

import (
	"context"
	"fmt"
	"iter"

	"github.com/campusportal/portal-rest/internal/platform/db"
	"github.com/campusportal/portal-rest/internal/principal"
)

// Source enumerates the groups that transitively contain a principal.
type Source interface {
	AllContainingGroups(ctx context.Context, p principal.Principal) iter.Seq2[principal.Principal, error]
}

// PGRepository walks up_group_membership.
type PGRepository struct {
	db db.Querier
}

// NewPGRepository constructs a repository.
func NewPGRepository(q db.Querier) *PGRepository {
	return &PGRepository{db: q}
}

// UNION (not UNION ALL) stops the walk at membership cycles.
const containingGroupsSQL = `WITH RECURSIVE containing(group_key) AS (
	SELECT m.group_key FROM up_group_membership m
	WHERE m.member_type = $1 AND m.member_key = $2
	UNION
	SELECT m.group_key FROM up_group_membership m
	JOIN containing c ON m.member_type = 'group' AND m.member_key = c.group_key
)
SELECT group_key FROM containing ORDER BY group_key`

// AllContainingGroups streams every ancestor group of p. Each range runs the query anew;
// stopping early closes the result set.
func (r *PGRepository) AllContainingGroups(ctx context.Context, p principal.Principal) iter.Seq2[principal.Principal, error] {
	return func(yield func(principal.Principal, error) bool) {
		rows, err := r.db.Query(ctx, containingGroupsSQL, string(p.Kind), p.Key)
		if err != nil {
			yield(principal.Principal{}, fmt.Errorf("groups: containing groups of %s: %w", p, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				yield(principal.Principal{}, fmt.Errorf("groups: scan: %w", err))
				return
			}
			if !yield(principal.Group(key), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(principal.Principal{}, fmt.Errorf("groups: containing groups of %s: %w", p, err))
		}
	}
}
