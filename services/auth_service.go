package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthService implements registration, login and current-user lookup.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	// EnsureAdmin creates an admin account unless the username is taken.
	EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, bool, error)
}

type authService struct {
	users   store.UserStore
	timeout time.Duration
}

// NewAuthService creates an AuthService. timeout bounds each store call; zero disables it.
func NewAuthService(users store.UserStore, timeout time.Duration) AuthService {
	return &authService{users: users, timeout: timeout}
}

func (s *authService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Register checks email uniqueness, then username uniqueness, then hashes
// the password and inserts the user with role "user". The order fixes which
// conflict is reported when both collide.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.register(ctx, in, models.RoleUser)
}

func (s *authService) register(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, &store.ConflictError{Field: "email"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, &store.ConflictError{Field: "username"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w: %w", store.ErrInternal, err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *authService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.users.GetByID(ctx, id)
}

func (s *authService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, bool, error) {
	lookupCtx, cancel := s.withTimeout(ctx)
	existing, err := s.users.GetByUsername(lookupCtx, strings.TrimSpace(in.Username))
	cancel()
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	user, err := s.register(ctx, in, models.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func validateRegistration(in RegisterInput) error {
	if l := len([]rune(in.Username)); l < 3 || l > 64 {
		return &ValidationError{Field: "username", Reason: "must be 3-64 characters"}
	}
	if !strings.Contains(in.Email, "@") || len(in.Email) > 255 {
		return &ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if l := len(in.Password); l < 6 || l > 72 {
		// bcrypt ignores input beyond 72 bytes
		return &ValidationError{Field: "password", Reason: "must be 6-72 characters"}
	}
	return nil
}
