package ports

import "github.com/campusgate/access-core/internal/core/domain"

// Signer is the opaque signing capability behind credentials.
type Signer interface {
	Sign(claims domain.CredentialClaims) (string, error)
	// Verify checks signature and expiry. It fails with
	// domain.ErrInvalidCredential or domain.ErrCredentialExpired.
	Verify(token string) (domain.CredentialClaims, error)
}
