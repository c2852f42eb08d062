// Package activities defines the static role-to-activity policy table.
// The table is fixed at compile time; changing a role's permitted
// activities is a code change and redeploy.
package activities

import "strings"

// Role identifies one of the seven business personas.
type Role string

const (
	RoleProjectManager   Role = "PM"
	RoleQuantitySurveyor Role = "QS"
	RoleSiteEngineer     Role = "SEF"
	RoleStoreKeeper      Role = "SK"
	RoleProcurement      Role = "PROC"
	RoleAccountant       Role = "ACC"
	RoleAdmin            Role = "AD"
)

// AllAccess is the sentinel activity marking an unrestricted grant.
// A member's activity list is either exactly [AllAccess] or a subset of
// their role's permitted activities, never a mix.
const AllAccess = "ALL ACCESS"

// SelectAllMarkers are the request values recognised as "grant everything".
var SelectAllMarkers = []string{"ALL", "All Access", AllAccess}

// ManageMembers gates the admin member-management endpoints.
const ManageMembers = "Add/remove other users"

var roleActivities = map[Role][]string{
	RoleProjectManager: {
		"Request new materials",
		"View all requests",
		"Validate requests from SEF",
		"Validate specification from QS",
	},
	RoleQuantitySurveyor: {
		"Create BOQ",
		"Validate requests from SEF",
		"Validate requests from PM",
		"Validate specification from SEF",
		"Validate specification from PM",
		"Submit approved requests for payment",
		"Introduce specification where needed",
		"Cross check with base BOQ",
		"Automatic update of active BOQ",
		"Interim valuation report",
		"Generate Analytics",
	},
	RoleSiteEngineer: {
		"Request for labor",
		"Request materials from store",
		"Log return of unused materials to store",
	},
	RoleStoreKeeper: {
		"Receive new materials",
		"Disburse materials in store",
		"Receive previously disbursed materials",
		"Request new materials",
	},
	RoleProcurement: {
		"Receive finalized requests",
		"Confirm status of procurement",
	},
	RoleAccountant: {
		"Make payment",
		"Request for payment",
		"Query payment approval from QS",
	},
	RoleAdmin: {
		"Add/remove other users",
		"Assign roles",
		"Select functions for each role",
		"Make payment",
		"Approve payment",
		"Query request",
	},
}

var roleDisplayNames = map[Role]string{
	RoleProjectManager:   "Project Manager",
	RoleQuantitySurveyor: "Quantity Surveyor",
	RoleSiteEngineer:     "Site Engineer/Foreman",
	RoleStoreKeeper:      "Store Keeper",
	RoleProcurement:      "Procurement",
	RoleAccountant:       "Accountant",
	RoleAdmin:            "Admin",
}

// Order in which roles are presented to clients.
var roleOrder = []Role{
	RoleProjectManager,
	RoleQuantitySurveyor,
	RoleSiteEngineer,
	RoleStoreKeeper,
	RoleProcurement,
	RoleAccountant,
	RoleAdmin,
}

// Roles returns all defined roles in presentation order.
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// ForRole returns the permitted activity list for a role. The result is
// a copy; unknown roles yield an empty list.
func ForRole(role Role) []string {
	list, ok := roleActivities[role]
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// RoleHasActivity reports whether a role may perform the given activity.
// The AllAccess marker always passes.
func RoleHasActivity(role Role, activity string) bool {
	if activity == AllAccess {
		return true
	}
	for _, a := range roleActivities[role] {
		if a == activity {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable label for a role.
func DisplayName(role Role) string {
	return roleDisplayNames[role]
}

// ParseRole resolves a role label case-insensitively.
func ParseRole(label string) (Role, bool) {
	label = strings.TrimSpace(label)
	for _, role := range roleOrder {
		if strings.EqualFold(string(role), label) {
			return role, true
		}
	}
	return "", false
}

// IsSelectAllMarker reports whether the supplied activity value requests
// an unrestricted grant.
func IsSelectAllMarker(activity string) bool {
	for _, marker := range SelectAllMarkers {
		if activity == marker {
			return true
		}
	}
	return false
}
