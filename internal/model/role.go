package model

import (
	"sort"

	"github.com/google/uuid"
)

// Role is the tag on a user account that selects its default permissions.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePractitioner Role = "practitioner"
	RoleStaff        Role = "staff"
	RoleAssistant    Role = "assistant"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RolePractitioner, RoleStaff, RoleAssistant}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePractitioner, RoleStaff, RoleAssistant:
		return true
	}
	return false
}

// PermissionCode names a capability.
type PermissionCode string

const (
	PermManageClients          PermissionCode = "manage_clients"
	PermManageAppointments     PermissionCode = "manage_appointments"
	PermViewSessions           PermissionCode = "view_sessions"
	PermManageSessions         PermissionCode = "manage_sessions"
	PermViewMedicalData        PermissionCode = "view_medical_data"
	PermManageAvailability     PermissionCode = "manage_availability"
	PermManagePracticeSettings PermissionCode = "manage_practice_settings"
)

// PermissionCodes lists every known permission.
var PermissionCodes = []PermissionCode{
	PermManageClients,
	PermManageAppointments,
	PermViewSessions,
	PermManageSessions,
	PermViewMedicalData,
	PermManageAvailability,
	PermManagePracticeSettings,
}

func (p PermissionCode) Valid() bool {
	for _, code := range PermissionCodes {
		if code == p {
			return true
		}
	}
	return false
}

// PermissionSet is a sorted, duplicate free list of permission codes.
type PermissionSet []PermissionCode

// NewPermissionSet normalises codes into a PermissionSet.
func NewPermissionSet(codes ...PermissionCode) PermissionSet {
	seen := make(map[PermissionCode]struct{}, len(codes))
	set := make(PermissionSet, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		set = append(set, c)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

func (s PermissionSet) Has(code PermissionCode) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// DefaultRolePermissions is the role to permission mapping used when no
// database backed mapping is configured. Every role has an entry.
var DefaultRolePermissions = map[Role][]PermissionCode{
	RoleAdmin: PermissionCodes,
	RolePractitioner: {
		PermManageClients,
		PermManageAppointments,
		PermViewSessions,
		PermManageSessions,
		PermViewMedicalData,
		PermManageAvailability,
	},
	RoleStaff: {
		PermManageClients,
		PermManageAppointments,
	},
	RoleAssistant: {
		PermManageClients,
		PermManageAppointments,
	},
}

// RolePermission is one row of the role_permissions table.
type RolePermission struct {
	Role       Role           `db:"role" json:"role"`
	Permission PermissionCode `db:"permission" json:"permission"`
}

// Actor is the authenticated caller of a request as supplied by the
// identity provider.
type Actor struct {
	UserID     uuid.UUID `json:"user_id"`
	Role       Role      `json:"role"`
	PracticeID uuid.UUID `json:"practice_id"`
}
