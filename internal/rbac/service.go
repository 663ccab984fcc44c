package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campusportal/portal-rest/internal/permissions"
	"github.com/campusportal/portal-rest/internal/principal"
)

// Service evaluates capabilities for a subject and every group containing it.
//
// A subject holds a capability when one of those principals is granted it on the target,
// on a group containing the target or on ALL, and none is denied it on any of them.
// Holders of SuperUser pass every check.
type Service struct {
	store  permissions.Store
	groups permissions.Membership
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store permissions.Store, groups permissions.Membership, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, groups: groups, logger: logger}
}

// HasPermission reports whether subject holds (owner, activity, target).
func (s *Service) HasPermission(ctx context.Context, subject principal.Principal, owner, activity, target string) (bool, error) {
	if subject.IsZero() {
		return false, nil
	}
	principals, err := s.principals(ctx, subject)
	if err != nil {
		return false, err
	}

	super, err := s.holds(ctx, principals, SuperUser, []string{TargetAll})
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}
	targets, err := s.targetScope(ctx, target)
	if err != nil {
		return false, err
	}
	return s.holds(ctx, principals, Capability{Owner: owner, Activity: activity, Target: target}, targets)
}

// Can is HasPermission for a Capability value.
func (s *Service) Can(ctx context.Context, subject principal.Principal, c Capability) (bool, error) {
	return s.HasPermission(ctx, subject, c.Owner, c.Activity, c.Target)
}

// CanRender reports whether subject may subscribe to and render the portlet.
func (s *Service) CanRender(ctx context.Context, subject principal.Principal, portletID int64) (bool, error) {
	return s.HasPermission(ctx, subject, OwnerPortletSubscribe, ActivitySubscribe, permissions.PortletTarget(portletID))
}

// CanManage reports whether subject may manage the portlet in its current lifecycle state.
func (s *Service) CanManage(ctx context.Context, subject principal.Principal, portletID int64, state LifecycleState) (bool, error) {
	return s.HasPermission(ctx, subject, OwnerPortletPublish, ManageActivity(state), permissions.PortletTarget(portletID))
}

// targetScope lists target, ALL and the keys of every group containing target.
func (s *Service) targetScope(ctx context.Context, target string) ([]string, error) {
	if target == TargetAll {
		return []string{TargetAll}, nil
	}
	targets := []string{target, TargetAll}
	tp, err := principal.Parse(target)
	if err != nil {
		return targets, nil
	}
	seen := map[string]struct{}{target: {}, TargetAll: {}}
	for g, err := range s.groups.AllContainingGroups(ctx, tp) {
		if err != nil {
			return nil, fmt.Errorf("rbac: containing groups of target %s: %w", target, err)
		}
		if _, dup := seen[g.Key]; dup {
			continue
		}
		seen[g.Key] = struct{}{}
		targets = append(targets, g.Key)
	}
	return targets, nil
}

func (s *Service) holds(ctx context.Context, principals []principal.Principal, c Capability, targets []string) (bool, error) {
	records, err := s.store.Select(ctx, permissions.Filter{
		Owner:      c.Owner,
		Activity:   c.Activity,
		Principals: principals,
		Targets:    targets,
	})
	if err != nil {
		return false, fmt.Errorf("rbac: select %s: %w", c, err)
	}
	granted := false
	for _, rec := range records {
		switch rec.Type {
		case permissions.TypeDeny:
			s.logger.DebugContext(ctx, "capability denied", slog.String("capability", c.String()), slog.String("principal", rec.Principal.String()))
			return false, nil
		case permissions.TypeGrant:
			granted = true
		}
	}
	return granted, nil
}

func (s *Service) principals(ctx context.Context, subject principal.Principal) ([]principal.Principal, error) {
	out := []principal.Principal{subject}
	seen := map[principal.Principal]struct{}{subject: {}}
	for g, err := range s.groups.AllContainingGroups(ctx, subject) {
		if err != nil {
			return nil, fmt.Errorf("rbac: containing groups of %s: %w", subject, err)
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}
