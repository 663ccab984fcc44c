package permissions

import "github.com/campusportal/portal-rest/internal/principal"

// Permission types stored alongside each record.
const (
	TypeGrant = "GRANT"
	TypeDeny  = "DENY"
)

// Owner, activity and target of the capability a viewer needs to inspect assignments.
const (
	OwnerPermissions        = "UP_PERMISSION"
	ActivityViewPermissions = "VIEW_PERMISSIONS"
	TargetREST              = "REST"
)

// Record is a single row of the permission store.
type Record struct {
	Owner     string
	Activity  string
	Target    string
	Principal principal.Principal
	Type      string
}

// Filter narrows a store lookup. Empty fields are wildcards.
type Filter struct {
	Owner      string
	Activity   string
	Type       string
	Principals []principal.Principal
	Targets    []string
}

// UniqueAssignment collapses records reached through different paths. Identifier is the
// target for principal-centric lookups and the principal for target-centric ones.
type UniqueAssignment struct {
	Owner      string
	Activity   string
	Identifier string
	Inherited  bool
}

// ResolvedAssignment is the display-ready form of an assignment.
type ResolvedAssignment struct {
	OwnerKey      string         `json:"ownerKey"`
	OwnerName     string         `json:"ownerName"`
	ActivityKey   string         `json:"activityKey"`
	ActivityName  string         `json:"activityName"`
	TargetKey     string         `json:"targetKey"`
	TargetName    string         `json:"targetName"`
	PrincipalKey  string         `json:"principalKey"`
	PrincipalName string         `json:"principalName"`
	PrincipalType principal.Kind `json:"principalType,omitempty"`
	Inherited     bool           `json:"inherited"`
}

// Owner is a subsystem defining a set of activities.
type Owner struct {
	ID          int64      `json:"id"`
	FName       string     `json:"fname"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Activities  []Activity `json:"activities,omitempty"`
}

// Activity is a permitted action declared by an owner.
type Activity struct {
	ID             int64  `json:"id"`
	OwnerFName     string `json:"ownerFname"`
	FName          string `json:"fname"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	TargetProvider string `json:"targetProviderKey,omitempty"`
}

// Target is something an activity can be granted on.
type Target struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}
