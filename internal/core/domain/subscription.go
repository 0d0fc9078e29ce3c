package domain

import (
	"fmt"
	"strings"
	"time"
)

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

var subscriptionStatuses = []SubscriptionStatus{
	SubscriptionActive,
	SubscriptionInactive,
	SubscriptionExpired,
	SubscriptionCancelled,
	SubscriptionPending,
	SubscriptionSuspended,
}

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	for _, known := range subscriptionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus resolves a status case-insensitively.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	status := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown subscription status %q", ErrValidation, s)
	}
	return status, nil
}

// SubscriptionType is the plan tier, e.g. "basic" or "premium".
type SubscriptionType string

const (
	SubscriptionBasic   SubscriptionType = "basic"
	SubscriptionPremium SubscriptionType = "premium"
	SubscriptionFamily  SubscriptionType = "family"
)

// Subscription is a user's paid entitlement.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Type      SubscriptionType   `json:"type"`
	Status    SubscriptionStatus `json:"status"`
	StartAt   time.Time          `json:"start_at"`
	EndAt     time.Time          `json:"end_at"`
	Amount    float64            `json:"amount"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActiveAt reports whether the subscription grants entitlement at now: the
// status must be active and the end must still lie ahead.
func (s Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndAt.After(now)
}

// SelectActive returns the single subscription active at now, nil when none,
// or ErrMultipleActiveSubscriptions when the one-active invariant is broken.
func SelectActive(subs []Subscription, now time.Time) (*Subscription, error) {
	var found *Subscription
	for i := range subs {
		if !subs[i].IsActiveAt(now) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: user %s has %s and %s",
				ErrMultipleActiveSubscriptions, subs[i].UserID, found.ID, subs[i].ID)
		}
		s := subs[i]
		found = &s
	}
	return found, nil
}
