package domain

import (
	"strings"
	"time"
)

// RoleClaim is the role data carried by an identity.
type RoleClaim struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SystemRole SystemRole `json:"system_role"`
}

// Identity is the authorization subject. It is materialised per check from
// the user's role assignments and subscriptions, or decoded from a credential.
type Identity struct {
	UserID             string             `json:"user_id"`
	Roles              []RoleClaim        `json:"roles"`
	SubscriptionType   SubscriptionType   `json:"subscription_type,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status,omitempty"`
	Entitled           bool               `json:"entitled"`
	// ExpiresAt is set when the identity was decoded from a credential.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// RoleIDs returns the ids of the held roles.
func (i Identity) RoleIDs() []string {
	ids := make([]string, len(i.Roles))
	for n, r := range i.Roles {
		ids[n] = r.ID
	}
	return ids
}

// HasSystemRole reports whether any held role carries one of tags.
func (i Identity) HasSystemRole(tags ...SystemRole) bool {
	for _, r := range i.Roles {
		if r.SystemRole == SystemRoleCustom {
			continue
		}
		for _, t := range tags {
			if r.SystemRole == t {
				return true
			}
		}
	}
	return false
}

// HasRoleNamed reports whether any held role has one of names, ignoring case.
func (i Identity) HasRoleNamed(names ...string) bool {
	for _, r := range i.Roles {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), r.Name) {
				return true
			}
		}
	}
	return false
}

// CredentialClaims is the snapshot embedded in a signed credential.
type CredentialClaims struct {
	ID                 string             `json:"jti"`
	Subject            string             `json:"sub"`
	Roles              []RoleClaim        `json:"roles"`
	SubscriptionType   SubscriptionType   `json:"sub_type,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"sub_status,omitempty"`
	IssuedAt           time.Time          `json:"iat"`
	ExpiresAt          time.Time          `json:"exp"`
}

// Identity projects the claims onto an authorization subject.
func (c CredentialClaims) Identity() Identity {
	roles := make([]RoleClaim, len(c.Roles))
	copy(roles, c.Roles)
	return Identity{
		UserID:             c.Subject,
		Roles:              roles,
		SubscriptionType:   c.SubscriptionType,
		SubscriptionStatus: c.SubscriptionStatus,
		Entitled:           c.SubscriptionStatus == SubscriptionActive,
		ExpiresAt:          c.ExpiresAt,
	}
}

// Credential is a signed, time-bounded snapshot of a user's authorization
// claims.
type Credential struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Claims    CredentialClaims `json:"-"`
}

// SystemActor is the actor id of internal callers such as the billing
// consumer and registration. Commands issued by it skip the actor check.
const SystemActor = "system"
