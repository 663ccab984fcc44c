// Package rbac answers portal capability checks from the permission store and the
// group hierarchy.
package rbac

import (
	"fmt"
	"strings"
)

// Capability names an (owner, activity, target) triple.
type Capability struct {
	Owner    string
	Activity string
	Target   string
}

func (c Capability) String() string {
	return c.Owner + "/" + c.Activity + "/" + c.Target
}

// Well-known owners, activities and targets.
const (
	OwnerSystem            = "UP_SYSTEM"
	ActivityAllPermissions = "ALL_PERMISSIONS"
	TargetAll              = "ALL"

	OwnerPortletSubscribe = "UP_PORTLET_SUBSCRIBE"
	ActivitySubscribe     = "SUBSCRIBE"

	OwnerPortletPublish = "UP_PORTLET_PUBLISH"
)

// SuperUser is held by portal administrators; it implies every other capability.
var SuperUser = Capability{Owner: OwnerSystem, Activity: ActivityAllPermissions, Target: TargetAll}

// LifecycleState is the publication state of a portlet definition.
type LifecycleState string

const (
	StateCreated     LifecycleState = "CREATED"
	StateApproved    LifecycleState = "APPROVED"
	StatePublished   LifecycleState = "PUBLISHED"
	StateExpired     LifecycleState = "EXPIRED"
	StateMaintenance LifecycleState = "MAINTENANCE"
)

// ParseLifecycleState normalizes a stored lifecycle state.
func ParseLifecycleState(raw string) (LifecycleState, error) {
	switch state := LifecycleState(strings.ToUpper(strings.TrimSpace(raw))); state {
	case StateCreated, StateApproved, StatePublished, StateExpired, StateMaintenance:
		return state, nil
	default:
		return "", fmt.Errorf("rbac: unknown lifecycle state %q", raw)
	}
}

// ManageActivity is the UP_PORTLET_PUBLISH activity that governs portlets in state.
func ManageActivity(state LifecycleState) string {
	switch state {
	case StateCreated:
		return "MANAGE_CREATED"
	case StateApproved:
		return "MANAGE_APPROVED"
	case StateExpired:
		return "MANAGE_EXPIRED"
	case StateMaintenance:
		return "MANAGE_MAINTENANCE"
	default:
		return "MANAGE"
	}
}
