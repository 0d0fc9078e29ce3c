package domain

import "errors"

// Authorization outcomes. Expected denials, not failures to retry.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoleDenied       = errors.New("role denied")
	ErrNotEntitled      = errors.New("not entitled")
)

// ErrDecisionIndeterminate marks a check that could not be completed, e.g.
// because the store failed or the context was cancelled. Callers deny.
var ErrDecisionIndeterminate = errors.New("authorization decision indeterminate")

// Credential validation. The caller must re-authenticate.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrCredentialExpired = errors.New("credential expired")
)

// ErrMultipleActiveSubscriptions signals a data-integrity violation that
// needs operator remediation. It is never resolved by picking one row.
var ErrMultipleActiveSubscriptions = errors.New("multiple active subscriptions")

var (
	ErrRoleNotFound             = errors.New("role not found")
	ErrPermissionNotFound       = errors.New("permission not found")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrUserExists               = errors.New("user already exists")
	ErrRoleExists               = errors.New("role already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrActiveSubscriptionExists = errors.New("user already has an active subscription")
	ErrInvalidMenuTree          = errors.New("invalid menu tree")
	ErrValidation               = errors.New("validation failed")
)

// IsDenial reports whether err is one of the expected authorization outcomes.
func IsDenial(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrRoleDenied) ||
		errors.Is(err, ErrNotEntitled)
}
