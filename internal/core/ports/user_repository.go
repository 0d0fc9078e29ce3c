package ports

import (
	"context"

	"github.com/campusgate/access-core/internal/core/domain"
)

// UserRepository defines account persistence used by login and registration.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}
