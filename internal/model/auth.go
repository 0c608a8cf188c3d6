package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a closed enumeration of actor roles.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePhysician    Role = "physician"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePhysician, RoleNurse, RoleReceptionist:
		return true
	}
	return false
}

// Permission names used by the role lookup table.
const (
	PermissionAll            = "*"
	PermissionPatientRead    = "patient:read"
	PermissionPatientWrite   = "patient:write"
	PermissionPatientArchive = "patient:archive"
	PermissionHistoryRead    = "history:read"
	PermissionHistoryWrite   = "history:write"
	PermissionVitalsRead     = "vitals:read"
	PermissionVitalsWrite    = "vitals:write"
	PermissionAuditRead      = "audit:read"
)

// RolePermissions maps each role to its permission set. A pure lookup
// table, not inheritance; admin holds the sentinel all-permissions value.
var RolePermissions = map[Role]map[string]bool{
	RoleAdmin: {
		PermissionAll: true,
	},
	RolePhysician: {
		PermissionPatientRead:    true,
		PermissionPatientWrite:   true,
		PermissionPatientArchive: true,
		PermissionHistoryRead:    true,
		PermissionHistoryWrite:   true,
		PermissionVitalsRead:     true,
		PermissionVitalsWrite:    true,
	},
	RoleNurse: {
		PermissionPatientRead:  true,
		PermissionPatientWrite: true,
		PermissionHistoryRead:  true,
		PermissionHistoryWrite: true,
		PermissionVitalsRead:   true,
		PermissionVitalsWrite:  true,
	},
	RoleReceptionist: {
		PermissionPatientRead:  true,
		PermissionPatientWrite: true,
	},
}

// HasPermission consults the role lookup table.
func (r Role) HasPermission(permission string) bool {
	perms, ok := RolePermissions[r]
	if !ok {
		return false
	}
	return perms[PermissionAll] || perms[permission]
}

// User is an authenticated staff member.
type User struct {
	Base
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         string     `db:"role" json:"role"`
	CareTeamID   *uuid.UUID `db:"care_team_id" json:"care_team_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)
