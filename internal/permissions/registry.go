package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/campusportal/portal-rest/internal/platform/db"
)

// TargetProvider resolves and searches the targets of one family of activities.
type TargetProvider interface {
	Target(ctx context.Context, key string) (Target, error)
	Search(ctx context.Context, term string) ([]Target, error)
}

// PGRegistry serves permission owners and activities from PostgreSQL and delegates target
// lookups to the provider named by each activity.
type PGRegistry struct {
	db        db.Querier
	providers map[string]TargetProvider
}

// NewPGRegistry constructs a registry. providers is keyed by target provider key.
func NewPGRegistry(q db.Querier, providers map[string]TargetProvider) *PGRegistry {
	if providers == nil {
		providers = map[string]TargetProvider{}
	}
	return &PGRegistry{db: q, providers: providers}
}

const ownerColumns = `id, fname, name, COALESCE(description, '')`

const activityColumns = `a.id, o.fname, a.fname, a.name, COALESCE(a.description, ''), COALESCE(a.target_provider, '')`

// Owners returns every owner with its activities, ordered by name.
func (r *PGRegistry) Owners(ctx context.Context) ([]Owner, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ownerColumns+` FROM up_permission_owner ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("permissions: list owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, scanOwner)
	if err != nil {
		return nil, fmt.Errorf("permissions: scan owners: %w", err)
	}
	activities, err := r.Activities(ctx, "")
	if err != nil {
		return nil, err
	}
	byOwner := make(map[string][]Activity, len(owners))
	for _, a := range activities {
		byOwner[a.OwnerFName] = append(byOwner[a.OwnerFName], a)
	}
	for i := range owners {
		owners[i].Activities = byOwner[owners[i].FName]
	}
	return owners, nil
}

// Owner finds an owner by numeric id or by fname.
func (r *PGRegistry) Owner(ctx context.Context, ref string) (Owner, error) {
	ref = strings.TrimSpace(ref)
	query := `SELECT ` + ownerColumns + ` FROM up_permission_owner WHERE fname = $1`
	var arg any = ref
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		query = `SELECT ` + ownerColumns + ` FROM up_permission_owner WHERE id = $1`
		arg = id
	}
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return Owner{}, fmt.Errorf("permissions: get owner: %w", err)
	}
	owner, err := pgx.CollectExactlyOneRow(rows, scanOwner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, ErrNotFound
		}
		return Owner{}, fmt.Errorf("permissions: get owner: %w", err)
	}
	activities, err := r.ownerActivities(ctx, owner.FName)
	if err != nil {
		return Owner{}, err
	}
	owner.Activities = activities
	return owner, nil
}

// Activities lists activities whose lower-cased name contains query. An empty query lists all.
func (r *PGRegistry) Activities(ctx context.Context, query string) ([]Activity, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+`
		FROM up_permission_activity a
		JOIN up_permission_owner o ON o.id = a.owner_id
		WHERE $1 = '' OR strpos(lower(a.name), $1) > 0
		ORDER BY o.fname, a.name`, query)
	if err != nil {
		return nil, fmt.Errorf("permissions: list activities: %w", err)
	}
	activities, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("permissions: scan activities: %w", err)
	}
	return activities, nil
}

// ActivityByID fetches a single activity.
func (r *PGRegistry) ActivityByID(ctx context.Context, id int64) (Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+`
		FROM up_permission_activity a
		JOIN up_permission_owner o ON o.id = a.owner_id
		WHERE a.id = $1`, id)
	if err != nil {
		return Activity{}, fmt.Errorf("permissions: get activity: %w", err)
	}
	activity, err := pgx.CollectExactlyOneRow(rows, scanActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, ErrNotFound
		}
		return Activity{}, fmt.Errorf("permissions: get activity: %w", err)
	}
	return activity, nil
}

// OwnerName returns the display name of an owner.
func (r *PGRegistry) OwnerName(ctx context.Context, ownerKey string) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM up_permission_owner WHERE fname = $1`, ownerKey).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("permissions: owner name: %w", err)
	}
	return name, nil
}

// ActivityName returns the display name of an owner's activity.
func (r *PGRegistry) ActivityName(ctx context.Context, ownerKey, activityKey string) (string, error) {
	activity, err := r.activity(ctx, ownerKey, activityKey)
	if err != nil {
		return "", err
	}
	return activity.Name, nil
}

// TargetName asks the activity's target provider for the target's display name.
func (r *PGRegistry) TargetName(ctx context.Context, ownerKey, activityKey, targetKey string) (string, error) {
	activity, err := r.activity(ctx, ownerKey, activityKey)
	if err != nil {
		return "", err
	}
	provider, ok := r.providers[activity.TargetProvider]
	if !ok {
		return "", ErrNotFound
	}
	target, err := provider.Target(ctx, targetKey)
	if err != nil {
		return "", err
	}
	return target.Name, nil
}

// SearchTargets returns the activity's targets whose name or key contains query.
func (r *PGRegistry) SearchTargets(ctx context.Context, activityID int64, query string) ([]Target, error) {
	activity, err := r.ActivityByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[activity.TargetProvider]
	if !ok {
		return nil, fmt.Errorf("permissions: no target provider %q: %w", activity.TargetProvider, ErrNotFound)
	}
	candidates, err := provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return matchTargets(candidates, query), nil
}

func matchTargets(candidates []Target, query string) []Target {
	query = strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]struct{}, len(candidates))
	matches := make([]Target, 0, len(candidates))
	for _, t := range candidates {
		if _, dup := seen[t.Key]; dup {
			continue
		}
		if query == "" ||
			(strings.TrimSpace(t.Name) != "" && strings.Contains(strings.ToLower(t.Name), query)) ||
			strings.Contains(strings.ToLower(t.Key), query) {
			seen[t.Key] = struct{}{}
			matches = append(matches, t)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].Key < matches[j].Key
	})
	return matches
}

func (r *PGRegistry) activity(ctx context.Context, ownerKey, activityKey string) (Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+`
		FROM up_permission_activity a
		JOIN up_permission_owner o ON o.id = a.owner_id
		WHERE o.fname = $1 AND a.fname = $2`, ownerKey, activityKey)
	if err != nil {
		return Activity{}, fmt.Errorf("permissions: get activity: %w", err)
	}
	activity, err := pgx.CollectExactlyOneRow(rows, scanActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, ErrNotFound
		}
		return Activity{}, fmt.Errorf("permissions: get activity: %w", err)
	}
	return activity, nil
}

func (r *PGRegistry) ownerActivities(ctx context.Context, ownerKey string) ([]Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+`
		FROM up_permission_activity a
		JOIN up_permission_owner o ON o.id = a.owner_id
		WHERE o.fname = $1
		ORDER BY a.name`, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("permissions: owner activities: %w", err)
	}
	activities, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("permissions: scan activities: %w", err)
	}
	return activities, nil
}

func scanOwner(row pgx.CollectableRow) (Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.FName, &o.Name, &o.Description)
	return o, err
}

func scanActivity(row pgx.CollectableRow) (Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.OwnerFName, &a.FName, &a.Name, &a.Description, &a.TargetProvider)
	return a, err
}
