package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/campusgate/access-core/internal/core/domain"
)

// UserStore implements ports.UserRepository.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, domain.ErrUserExists
	}
	for _, u := range s.byID {
		if u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}

	created := *user
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.byID[created.ID] = created
	s.byEmail[email] = created.ID
	return &created, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}
