package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusportal/portal-rest/internal/permissions"
	"github.com/campusportal/portal-rest/internal/principal"
)

type keyNames struct{}

func (keyNames) OwnerName(ctx context.Context, key string) (string, error) { return key, nil }

func (keyNames) ActivityName(ctx context.Context, owner, key string) (string, error) {
	return key, nil
}

func (keyNames) TargetName(ctx context.Context, owner, activity, key string) (string, error) {
	return key, nil
}

type parseDirectory struct{}

func (parseDirectory) Resolve(ctx context.Context, identifier string) (principal.Entity, error) {
	p, err := principal.Parse(identifier)
	if err != nil {
		return principal.Entity{}, err
	}
	return principal.Entity{ID: p.Key, Name: p.Key, Kind: p.Kind}, nil
}

func newAuthorizedResolver(store *memStore, groups memGroups) *permissions.Resolver {
	root := principal.User("root")
	store.records = append(store.records,
		record(permissions.TypeGrant, OwnerSystem, ActivityAllPermissions, TargetAll, root))
	authz := NewService(store, groups, nil)
	return permissions.NewResolver(store, groups, authz, keyNames{}, parseDirectory{}, nil)
}

func TestResolveForTargetKeepsGrantsOnContainingGroups(t *testing.T) {
	staff, faculty := principal.Group("staff"), principal.Group("faculty")
	store := &memStore{records: []permissions.Record{
		record(permissions.TypeGrant, "UP_GROUPS", "VIEW_GROUP", "staff", students),
	}}
	resolver := newAuthorizedResolver(store, memGroups{faculty: {staff}})

	got, err := resolver.ResolveForTarget(context.Background(), principal.User("root"), "faculty", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "students", got[0].PrincipalKey)
	assert.Equal(t, "faculty", got[0].TargetKey)
	assert.True(t, got[0].Inherited)

	got, err = resolver.ResolveForTarget(context.Background(), principal.User("root"), "faculty", false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveForTargetDropsCandidatesDeniedOnTheTarget(t *testing.T) {
	staff, faculty := principal.Group("staff"), principal.Group("faculty")
	store := &memStore{records: []permissions.Record{
		record(permissions.TypeGrant, "UP_GROUPS", "VIEW_GROUP", "staff", students),
		record(permissions.TypeDeny, "UP_GROUPS", "VIEW_GROUP", "faculty", students),
	}}
	resolver := newAuthorizedResolver(store, memGroups{faculty: {staff}})

	got, err := resolver.ResolveForTarget(context.Background(), principal.User("root"), "faculty", true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveForPrincipalWithStoreBackedAuthorization(t *testing.T) {
	store := &memStore{records: []permissions.Record{
		record(permissions.TypeGrant, OwnerPortletSubscribe, ActivitySubscribe, "PORTLET_ID.1", students),
		record(permissions.TypeGrant, OwnerPortletSubscribe, ActivitySubscribe, "PORTLET_ID.2", students),
		record(permissions.TypeDeny, OwnerPortletSubscribe, ActivitySubscribe, "PORTLET_ID.2", alice),
	}}
	resolver := newAuthorizedResolver(store, memGroups{alice: {students}})

	got, err := resolver.ResolveForPrincipal(context.Background(), principal.User("root"), "user:alice", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PORTLET_ID.1", got[0].TargetKey)
	assert.True(t, got[0].Inherited)
}
