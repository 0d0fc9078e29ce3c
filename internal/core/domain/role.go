package domain

import (
	"fmt"
	"strings"
	"time"
)

// SystemRole tags the built-in roles. Custom roles carry SystemRoleCustom.
type SystemRole int

const (
	SystemRoleCustom SystemRole = iota
	SystemRoleSuperAdmin
	SystemRoleAdmin
	SystemRoleTeacher
	SystemRoleStudent
	SystemRoleParent
)

var systemRoleNames = map[SystemRole]string{
	SystemRoleCustom:     "custom",
	SystemRoleSuperAdmin: "super_admin",
	SystemRoleAdmin:      "admin",
	SystemRoleTeacher:    "teacher",
	SystemRoleStudent:    "student",
	SystemRoleParent:     "parent",
}

func (r SystemRole) String() string {
	if name, ok := systemRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("system_role(%d)", int(r))
}

// IsBuiltIn reports whether r is one of the fixed built-in roles.
func (r SystemRole) IsBuiltIn() bool {
	_, ok := systemRoleNames[r]
	return ok && r != SystemRoleCustom
}

// ParseSystemRole resolves a tag such as "admin" or "super_admin".
func ParseSystemRole(s string) (SystemRole, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range systemRoleNames {
		if s == name {
			return role, nil
		}
	}
	return SystemRoleCustom, fmt.Errorf("%w: unknown system role %q", ErrValidation, s)
}

// MarshalText encodes the tag name.
func (r SystemRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a tag name.
func (r *SystemRole) UnmarshalText(b []byte) error {
	parsed, err := ParseSystemRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Role is a named bundle of permission grants.
type Role struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	SystemRole  SystemRole `json:"system_role"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Claim returns the role as embedded in identities and credentials.
func (r Role) Claim() RoleClaim {
	return RoleClaim{ID: r.ID, Name: r.Name, SystemRole: r.SystemRole}
}

// RolePermission grants a permission to a role. Existence is the grant.
type RolePermission struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID     string     `json:"user_id"`
	RoleID     string     `json:"role_id"`
	AssignedBy string     `json:"assigned_by,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// EffectiveAt reports whether the assignment is in force at now.
func (ur UserRole) EffectiveAt(now time.Time) bool {
	return ur.ExpiresAt == nil || ur.ExpiresAt.After(now)
}

// NextExpiry returns the earliest expiry after now among assignments, or nil
// when none of them expires.
func NextExpiry(assignments []UserRole, now time.Time) *time.Time {
	var next *time.Time
	for _, ur := range assignments {
		if ur.ExpiresAt == nil || !ur.ExpiresAt.After(now) {
			continue
		}
		if next == nil || ur.ExpiresAt.Before(*next) {
			at := *ur.ExpiresAt
			next = &at
		}
	}
	return next
}
