package permissions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
)

// Target provider keys referenced by up_permission_activity.target_provider.
const (
	ProviderPortlets = "portlets"
	ProviderGroups   = "groups"
)

// PortletTargetPrefix prefixes portlet definition ids used as permission targets.
const PortletTargetPrefix = "PORTLET_ID."

const searchLimit = 50

// PortletTargets resolves PORTLET_ID.<id> targets against the portlet registry.
type PortletTargets struct {
	db db.Querier
}

// NewPortletTargets constructs the portlet target provider.
func NewPortletTargets(q db.Querier) *PortletTargets {
	return &PortletTargets{db: q}
}

// PortletTarget renders the target key for a portlet definition id.
func PortletTarget(id int64) string {
	return PortletTargetPrefix + strconv.FormatInt(id, 10)
}

// Target looks a single portlet target up.
func (p *PortletTargets) Target(ctx context.Context, key string) (Target, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(key, PortletTargetPrefix), 10, 64)
	if err != nil {
		return Target{}, ErrNotFound
	}
	var name string
	if err := p.db.QueryRow(ctx, `SELECT name FROM up_portlet_def WHERE id = $1`, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Target{}, ErrNotFound
		}
		return Target{}, fmt.Errorf("permissions: portlet target: %w", err)
	}
	return Target{Key: key, Name: name}, nil
}

// Search finds portlets by name or fname.
func (p *PortletTargets) Search(ctx context.Context, term string) ([]Target, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	rows, err := p.db.Query(ctx, `SELECT id, name FROM up_portlet_def
		WHERE $1 = '' OR strpos(lower(name), $1) > 0 OR strpos(lower(fname), $1) > 0
		ORDER BY name LIMIT $2`, term, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("permissions: search portlet targets: %w", err)
	}
	targets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Target, error) {
		var (
			id   int64
			name string
		)
		if err := row.Scan(&id, &name); err != nil {
			return Target{}, err
		}
		return Target{Key: PortletTarget(id), Name: name}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("permissions: scan portlet targets: %w", err)
	}
	return targets, nil
}

// GroupTargets resolves groups and people used as permission targets.
type GroupTargets struct {
	db db.Querier
}

// NewGroupTargets constructs the group target provider.
func NewGroupTargets(q db.Querier) *GroupTargets {
	return &GroupTargets{db: q}
}

// Target looks a group or person up by key, groups first.
func (g *GroupTargets) Target(ctx context.Context, key string) (Target, error) {
	var name string
	err := g.db.QueryRow(ctx, `SELECT name FROM (
			SELECT name, 0 AS rank FROM up_group WHERE group_key = $1
			UNION ALL
			SELECT display_name, 1 FROM up_person WHERE username = $1
		) t ORDER BY rank LIMIT 1`, key).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Target{}, ErrNotFound
		}
		return Target{}, fmt.Errorf("permissions: group target: %w", err)
	}
	return Target{Key: key, Name: name}, nil
}

// Search finds groups and people by key or name.
func (g *GroupTargets) Search(ctx context.Context, term string) ([]Target, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	rows, err := g.db.Query(ctx, `SELECT key, name FROM (
			SELECT group_key AS key, name FROM up_group
			UNION ALL
			SELECT username, display_name FROM up_person
		) t
		WHERE $1 = '' OR strpos(lower(name), $1) > 0 OR strpos(lower(key), $1) > 0
		ORDER BY name LIMIT $2`, term, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("permissions: search group targets: %w", err)
	}
	targets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Target])
	if err != nil {
		return nil, fmt.Errorf("permissions: scan group targets: %w", err)
	}
	return targets, nil
}
