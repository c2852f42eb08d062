package activities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForRoleReturnsCopies(t *testing.T) {
	first := ForRole(RoleProjectManager)
	require.NotEmpty(t, first)

	first[0] = "tampered"
	require.NotEqual(t, "tampered", ForRole(RoleProjectManager)[0])
}

func TestForRoleUnknownRole(t *testing.T) {
	require.Empty(t, ForRole(Role("GHOST")))
}

func TestEveryRoleHasActivitiesAndDisplayName(t *testing.T) {
	roles := Roles()
	require.Len(t, roles, 7)

	for _, role := range roles {
		require.NotEmpty(t, ForRole(role), "role %s has no activities", role)
		require.NotEmpty(t, DisplayName(role), "role %s has no display name", role)
	}
}

func TestRoleHasActivity(t *testing.T) {
	for _, role := range Roles() {
		for _, activity := range ForRole(role) {
			require.True(t, RoleHasActivity(role, activity))
		}
	}

	require.False(t, RoleHasActivity(RoleProcurement, "Create BOQ"))
	require.True(t, RoleHasActivity(RoleProcurement, AllAccess))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("pm")
	require.True(t, ok)
	require.Equal(t, RoleProjectManager, role)

	role, ok = ParseRole("  Proc ")
	require.True(t, ok)
	require.Equal(t, RoleProcurement, role)

	_, ok = ParseRole("manager")
	require.False(t, ok)
}

func TestIsSelectAllMarker(t *testing.T) {
	require.True(t, IsSelectAllMarker("ALL"))
	require.True(t, IsSelectAllMarker("All Access"))
	require.True(t, IsSelectAllMarker(AllAccess))
	require.False(t, IsSelectAllMarker("all"))
	require.False(t, IsSelectAllMarker("Make payment"))
}
