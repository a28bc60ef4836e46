package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/inkwell/blog/models"
)

// UserStore is the credential store. Username and email are unique.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create inserts u and assigns its id. A uniqueness violation yields a
	// *ConflictError naming "email" or "username", checked in that order.
	Create(ctx context.Context, u *models.User) error
}

// MemoryUserStore is a UserStore kept in process memory.
type MemoryUserStore struct {
	mu     sync.RWMutex
	users  map[uint]models.User
	nextID uint
}

// NewMemoryUserStore creates an empty in-memory credential store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uint]models.User)}
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *MemoryUserStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			observe("memory", "user_create", ErrConflict)
			return &ConflictError{Field: "email"}
		}
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			observe("memory", "user_create", ErrConflict)
			return &ConflictError{Field: "username"}
		}
	}

	s.nextID++
	u.ID = s.nextID
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = *u
	observe("memory", "user_create", nil)
	return nil
}

// SetRole changes a user's role. Only operators and tests use it; the
// authorization guard picks the change up on the next request.
func (s *MemoryUserStore) SetRole(id uint, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	s.users[id] = u
	return nil
}

// Delete removes a user. Sessions referencing it stop being authorized.
func (s *MemoryUserStore) Delete(id uint) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}
