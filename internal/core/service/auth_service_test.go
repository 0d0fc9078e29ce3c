package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
)

type stubUserRepo struct {
	users map[string]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.ErrUserExists
	}
	copy := cloneUser(user)
	if copy.ID == "" {
		copy.ID = user.Username
	}
	r.users[copy.Email] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := r.users[email]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func newAuthSvc(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	if _, err := store.CreateRole(context.Background(), domain.Role{Name: "Student", SystemRole: domain.SystemRoleStudent, Active: true}); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	return NewAuthService(newStubUserRepo(), store, domain.SystemRoleStudent, zerolog.Nop()), store
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, store := newAuthSvc(t)

	user, err := svc.Register(context.Background(), ports.RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "pass123"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalised email, got %s", user.Email)
	}

	roles, _ := store.GetRolesForUser(context.Background(), user.ID)
	if len(roles) != 1 || roles[0].SystemRole != domain.SystemRoleStudent {
		t.Fatalf("expected default student role, got %+v", roles)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newAuthSvc(t)

	if _, err := svc.Register(context.Background(), ports.RegisterInput{Username: "", Email: "x@example.com", Password: "pass"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.Register(context.Background(), ports.RegisterInput{Username: "bob", Email: "", Password: "pass"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without email, got %v", err)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc, _ := newAuthSvc(t)

	_, _ = svc.Register(context.Background(), ports.RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pass"})
	if _, err := svc.Register(context.Background(), ports.RegisterInput{Username: "bob2", Email: "bob@example.com", Password: "pass2"}); err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	svc, _ := newAuthSvc(t)

	if _, err := svc.Register(context.Background(), ports.RegisterInput{Username: "carol", Email: "carol@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "carol@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user == nil || user.Username != "carol" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthService_Authenticate_InvalidPassword(t *testing.T) {
	svc, _ := newAuthSvc(t)

	_, _ = svc.Register(context.Background(), ports.RegisterInput{Username: "dave", Email: "dave@example.com", Password: "goodpass"})
	if _, err := svc.Authenticate(context.Background(), "dave@example.com", "badpass"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_UnknownUserLooksLikeBadPassword(t *testing.T) {
	svc, _ := newAuthSvc(t)

	if _, err := svc.Authenticate(context.Background(), "ghost@example.com", "pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
