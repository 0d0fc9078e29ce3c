package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

// AuthService implements registration and password login. Credentials are
// issued separately so that login and token refresh share one path.
type AuthService struct {
	users       ports.UserRepository
	rbac        ports.RBACRepository
	defaultRole domain.SystemRole
	log         zerolog.Logger
}

// NewAuthService returns an AuthService. New accounts receive the active role
// tagged defaultRole when one exists; SystemRoleCustom disables that.
func NewAuthService(users ports.UserRepository, rbac ports.RBACRepository, defaultRole domain.SystemRole, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, rbac: rbac, defaultRole: defaultRole, log: log}
}

var _ ports.AuthService = (*AuthService)(nil)

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.assignDefaultRole(ctx, created.ID); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return created, nil
}

func (s *AuthService) assignDefaultRole(ctx context.Context, userID string) error {
	if !s.defaultRole.IsBuiltIn() {
		return nil
	}
	roles, err := s.rbac.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if r.SystemRole != s.defaultRole || !r.Active {
			continue
		}
		return s.rbac.AssignRoleToUser(ctx, domain.UserRole{
			UserID:     userID,
			RoleID:     r.ID,
			AssignedBy: domain.SystemActor,
			AssignedAt: time.Now().UTC(),
		})
	}
	s.log.Warn().Str("role", s.defaultRole.String()).Msg("default role not found, user registered without roles")
	return nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}
