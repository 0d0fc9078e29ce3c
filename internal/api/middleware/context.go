package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/campusgate/access-core/internal/core/domain"
)

// IdentityKey is the echo context key holding the authenticated identity.
const IdentityKey = "identity"

// SetIdentity stores id on c.
func SetIdentity(c echo.Context, id domain.Identity) {
	c.Set(IdentityKey, id)
}

// IdentityFrom returns the identity put there by Authenticate.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(IdentityKey).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, false
	}
	return id, true
}
