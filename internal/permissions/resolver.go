package permissions

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
	"github.com/campusportal/portal-rest/internal/principal"
)

// Store looks permission records up.
type Store interface {
	Select(ctx context.Context, filter Filter) ([]Record, error)
}

// Membership enumerates the groups that transitively contain a principal. The sequence
// is finite and may be ranged over more than once.
type Membership interface {
	AllContainingGroups(ctx context.Context, p principal.Principal) iter.Seq2[principal.Principal, error]
}

// Authorizer answers capability checks for a subject.
type Authorizer interface {
	HasPermission(ctx context.Context, subject principal.Principal, owner, activity, target string) (bool, error)
}

// Names resolves display names for owners, activities and targets.
type Names interface {
	OwnerName(ctx context.Context, ownerKey string) (string, error)
	ActivityName(ctx context.Context, ownerKey, activityKey string) (string, error)
	TargetName(ctx context.Context, ownerKey, activityKey, targetKey string) (string, error)
}

// Directory resolves a principal identifier ("kind:key" or a bare key) to an entity.
type Directory interface {
	Resolve(ctx context.Context, identifier string) (principal.Entity, error)
}

// Resolver computes effective permission assignments for a principal or a target.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	store     Store
	groups    Membership
	authz     Authorizer
	names     Names
	directory Directory
	logger    *slog.Logger
}

// NewResolver wires a Resolver from its collaborators.
func NewResolver(store Store, groups Membership, authz Authorizer, names Names, directory Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, groups: groups, authz: authz, names: names, directory: directory, logger: logger}
}

// AuthorizeViewer fails with ErrViewerUnauthorized unless viewer may inspect permissions.
func (r *Resolver) AuthorizeViewer(ctx context.Context, viewer principal.Principal) error {
	if viewer.IsZero() {
		return ErrViewerUnauthorized
	}
	ok, err := r.authz.HasPermission(ctx, viewer, OwnerPermissions, ActivityViewPermissions, TargetREST)
	if err != nil {
		return upstream("authorize viewer", err)
	}
	if !ok {
		return ErrViewerUnauthorized
	}
	return nil
}

// ResolveForPrincipal lists the assignments held by identifier, optionally including
// those inherited from containing groups. Each assignment is kept only if the principal
// is currently authorized for it.
func (r *Resolver) ResolveForPrincipal(ctx context.Context, viewer principal.Principal, identifier string, includeInherited bool) ([]ResolvedAssignment, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidIdentifier
	}
	if err := r.AuthorizeViewer(ctx, viewer); err != nil {
		return nil, err
	}

	entity, err := r.entity(ctx, identifier)
	if err != nil {
		return nil, err
	}
	subject := entity.Principal()

	unique := make(map[UniqueAssignment]struct{})
	direct, err := r.store.Select(ctx, Filter{Principals: []principal.Principal{subject}})
	if err != nil {
		return nil, upstream("select direct assignments", err)
	}
	for _, rec := range direct {
		unique[UniqueAssignment{Owner: rec.Owner, Activity: rec.Activity, Identifier: rec.Target, Inherited: false}] = struct{}{}
	}

	if includeInherited {
		parents, err := r.containingGroups(ctx, subject)
		if err != nil {
			return nil, err
		}
		if len(parents) > 0 {
			inherited, err := r.store.Select(ctx, Filter{Principals: parents})
			if err != nil {
				return nil, upstream("select inherited assignments", err)
			}
			for _, rec := range inherited {
				unique[UniqueAssignment{Owner: rec.Owner, Activity: rec.Activity, Identifier: rec.Target, Inherited: true}] = struct{}{}
			}
		}
	}

	lookup := r.newNameCache()
	resolved := make([]ResolvedAssignment, 0, len(unique))
	for ua := range unique {
		ok, err := r.authz.HasPermission(ctx, subject, ua.Owner, ua.Activity, ua.Identifier)
		if err != nil {
			return nil, upstream("authorize assignment", err)
		}
		if !ok {
			continue
		}
		resolved = append(resolved, ResolvedAssignment{
			OwnerKey:      ua.Owner,
			OwnerName:     lookup.owner(ctx, ua.Owner),
			ActivityKey:   ua.Activity,
			ActivityName:  lookup.activity(ctx, ua.Owner, ua.Activity),
			TargetKey:     ua.Identifier,
			TargetName:    lookup.target(ctx, ua.Owner, ua.Activity, ua.Identifier),
			PrincipalKey:  entity.ID,
			PrincipalName: entity.Name,
			PrincipalType: entity.Kind,
			Inherited:     ua.Inherited,
		})
	}

	slices.SortFunc(resolved, func(a, b ResolvedAssignment) int {
		return cmp.Or(
			cmp.Compare(a.OwnerName, b.OwnerName),
			cmp.Compare(a.ActivityName, b.ActivityName),
			cmp.Compare(a.TargetName, b.TargetName),
			tieBreak(a, b),
		)
	})
	return resolved, nil
}

// ResolveForTarget lists the assignments granted on target, optionally including those
// granted on groups containing the target. Each assignment is kept only if its
// principal is currently authorized for the fixed target.
func (r *Resolver) ResolveForTarget(ctx context.Context, viewer principal.Principal, identifier string, includeInherited bool) ([]ResolvedAssignment, error) {
	target := strings.TrimSpace(identifier)
	if target == "" {
		return nil, ErrInvalidIdentifier
	}
	if err := r.AuthorizeViewer(ctx, viewer); err != nil {
		return nil, err
	}

	unique := make(map[UniqueAssignment]struct{})
	direct, err := r.store.Select(ctx, Filter{Targets: []string{target}})
	if err != nil {
		return nil, upstream("select direct assignments", err)
	}
	for _, rec := range direct {
		unique[UniqueAssignment{Owner: rec.Owner, Activity: rec.Activity, Identifier: rec.Principal.String(), Inherited: false}] = struct{}{}
	}

	if includeInherited {
		targetPrincipal, err := principal.Parse(target)
		if err != nil {
			return nil, ErrInvalidIdentifier
		}
		parents, err := r.containingGroups(ctx, targetPrincipal)
		if err != nil {
			return nil, err
		}
		if len(parents) > 0 {
			keys := make([]string, 0, len(parents))
			for _, p := range parents {
				keys = append(keys, p.Key)
			}
			inherited, err := r.store.Select(ctx, Filter{Targets: keys})
			if err != nil {
				return nil, upstream("select inherited assignments", err)
			}
			for _, rec := range inherited {
				unique[UniqueAssignment{Owner: rec.Owner, Activity: rec.Activity, Identifier: rec.Principal.String(), Inherited: true}] = struct{}{}
			}
		}
	}

	lookup := r.newNameCache()
	resolved := make([]ResolvedAssignment, 0, len(unique))
	for ua := range unique {
		candidate, err := principal.Parse(ua.Identifier)
		if err != nil {
			continue
		}
		ok, err := r.authz.HasPermission(ctx, candidate, ua.Owner, ua.Activity, target)
		if err != nil {
			return nil, upstream("authorize assignment", err)
		}
		if !ok {
			continue
		}
		entity := lookup.entity(ctx, candidate)
		resolved = append(resolved, ResolvedAssignment{
			OwnerKey:      ua.Owner,
			OwnerName:     lookup.owner(ctx, ua.Owner),
			ActivityKey:   ua.Activity,
			ActivityName:  lookup.activity(ctx, ua.Owner, ua.Activity),
			TargetKey:     target,
			TargetName:    lookup.target(ctx, ua.Owner, ua.Activity, target),
			PrincipalKey:  entity.ID,
			PrincipalName: entity.Name,
			PrincipalType: entity.Kind,
			Inherited:     ua.Inherited,
		})
	}

	slices.SortFunc(resolved, func(a, b ResolvedAssignment) int {
		return cmp.Or(
			cmp.Compare(a.OwnerName, b.OwnerName),
			cmp.Compare(a.ActivityName, b.ActivityName),
			cmp.Compare(a.PrincipalName, b.PrincipalName),
			tieBreak(a, b),
		)
	})
	return resolved, nil
}

// containingGroups drains the membership sequence. Duplicate groups are collapsed.
func (r *Resolver) containingGroups(ctx context.Context, p principal.Principal) ([]principal.Principal, error) {
	var (
		groups []principal.Principal
		seen   = make(map[principal.Principal]struct{})
	)
	for g, err := range r.groups.AllContainingGroups(ctx, p) {
		if err != nil {
			return nil, upstream("containing groups", err)
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}
	return groups, nil
}

// entity resolves identifier through the directory. Only a directory miss falls back to
// parsing the identifier; other directory failures are upstream faults.
func (r *Resolver) entity(ctx context.Context, identifier string) (principal.Entity, error) {
	entity, err := r.directory.Resolve(ctx, identifier)
	switch {
	case err != nil && !errors.Is(err, httpx.ErrNotFound):
		return principal.Entity{}, upstream("resolve principal", err)
	case err == nil && entity.ID != "":
		if entity.Name == "" {
			entity.Name = entity.ID
		}
		return entity, nil
	}
	p, perr := principal.Parse(identifier)
	if perr != nil {
		return principal.Entity{}, ErrInvalidIdentifier
	}
	return principal.Entity{ID: p.Key, Name: p.Key, Kind: p.Kind}, nil
}

func tieBreak(a, b ResolvedAssignment) int {
	return cmp.Or(
		cmp.Compare(a.OwnerKey, b.OwnerKey),
		cmp.Compare(a.ActivityKey, b.ActivityKey),
		cmp.Compare(a.TargetKey, b.TargetKey),
		cmp.Compare(a.PrincipalType, b.PrincipalType),
		cmp.Compare(a.PrincipalKey, b.PrincipalKey),
		compareBool(a.Inherited, b.Inherited),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// nameCache memoizes display lookups for the duration of one resolution.
type nameCache struct {
	r          *Resolver
	owners     map[string]string
	activities map[[2]string]string
	targets    map[[3]string]string
	entities   map[principal.Principal]principal.Entity
}

func (r *Resolver) newNameCache() *nameCache {
	return &nameCache{
		r:          r,
		owners:     make(map[string]string),
		activities: make(map[[2]string]string),
		targets:    make(map[[3]string]string),
		entities:   make(map[principal.Principal]principal.Entity),
	}
}

func (c *nameCache) owner(ctx context.Context, key string) string {
	if name, ok := c.owners[key]; ok {
		return name
	}
	name, err := c.r.names.OwnerName(ctx, key)
	name = c.fallback(ctx, "owner", key, name, err)
	c.owners[key] = name
	return name
}

func (c *nameCache) activity(ctx context.Context, owner, key string) string {
	k := [2]string{owner, key}
	if name, ok := c.activities[k]; ok {
		return name
	}
	name, err := c.r.names.ActivityName(ctx, owner, key)
	name = c.fallback(ctx, "activity", key, name, err)
	c.activities[k] = name
	return name
}

func (c *nameCache) target(ctx context.Context, owner, activity, key string) string {
	k := [3]string{owner, activity, key}
	if name, ok := c.targets[k]; ok {
		return name
	}
	name, err := c.r.names.TargetName(ctx, owner, activity, key)
	name = c.fallback(ctx, "target", key, name, err)
	c.targets[k] = name
	return name
}

func (c *nameCache) entity(ctx context.Context, p principal.Principal) principal.Entity {
	if e, ok := c.entities[p]; ok {
		return e
	}
	e, err := c.r.directory.Resolve(ctx, p.String())
	if err != nil || e.ID == "" {
		if err != nil {
			c.r.logger.DebugContext(ctx, "principal display unavailable", slog.String("principal", p.String()), slog.Any("error", err))
		}
		e = principal.Entity{ID: p.Key, Name: p.Key, Kind: p.Kind}
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	c.entities[p] = e
	return e
}

func (c *nameCache) fallback(ctx context.Context, kind, key, name string, err error) string {
	if err != nil {
		c.r.logger.DebugContext(ctx, "display name unavailable", slog.String("kind", kind), slog.String("key", key), slog.Any("error", err))
		return key
	}
	if strings.TrimSpace(name) == "" {
		return key
	}
	return name
}
