package ports

import (
	"context"

	"github.com/campusgate/access-core/internal/core/domain"
)

// RegisterInput carries the data needed to open an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// Authenticate checks email and password and returns the account.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}
