package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/store"
)

type AuthServiceTestSuite struct {
	suite.Suite
	users *store.MemoryUserStore
	auth  AuthService
	ctx   context.Context
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.users = store.NewMemoryUserStore()
	s.auth = NewAuthService(s.users, 0)
	s.ctx = context.Background()
}

func (s *AuthServiceTestSuite) register(username, email string) (*models.User, error) {
	return s.auth.Register(s.ctx, RegisterInput{Username: username, Email: email, Password: "secret123"})
}

func (s *AuthServiceTestSuite) TestRegisterCreatesUserRole() {
	user, err := s.register("  alice ", " Alice@Example.com ")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.Equal("alice@example.com", user.Email)
	s.Equal(models.RoleUser, user.Role)
	s.NotEqual("secret123", user.PasswordHash)
	s.NotEmpty(user.PasswordHash)
}

func (s *AuthServiceTestSuite) TestRegisterConflicts() {
	_, err := s.register("alice", "a@x.com")
	s.Require().NoError(err)

	tests := []struct {
		name     string
		username string
		email    string
		field    string
	}{
		{"same email", "bob", "a@x.com", "email"},
		{"same email other case", "bob", "A@X.COM", "email"},
		{"same username", "alice", "b@x.com", "username"},
		{"email is checked first", "alice", "a@x.com", "email"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.register(tt.username, tt.email)
			s.Require().ErrorIs(err, store.ErrConflict)
			field, _ := store.ConflictField(err)
			s.Equal(tt.field, field)
		})
	}
}

func (s *AuthServiceTestSuite) TestRegisterValidation() {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "al", Email: "a@x.com", Password: "secret123"}, "username"},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "secret123"}, "email"},
		{"short password", RegisterInput{Username: "alice", Email: "a@x.com", Password: "123"}, "password"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.auth.Register(s.ctx, tt.in)
			var ve *ValidationError
			s.Require().ErrorAs(err, &ve)
			s.Equal(tt.field, ve.Field)
		})
	}
}

func (s *AuthServiceTestSuite) TestLogin() {
	_, err := s.register("alice", "a@x.com")
	s.Require().NoError(err)

	user, err := s.auth.Login(s.ctx, "alice", "secret123")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)

	_, err = s.auth.Login(s.ctx, "alice", "wrong-password")
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.auth.Login(s.ctx, "nobody", "secret123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestEnsureAdmin() {
	in := RegisterInput{Username: "root", Email: "root@x.com", Password: "rootpass"}
	admin, created, err := s.auth.EnsureAdmin(s.ctx, in)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(models.RoleAdmin, admin.Role)

	again, created, err := s.auth.EnsureAdmin(s.ctx, in)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(admin.ID, again.ID)
}

func (s *AuthServiceTestSuite) TestGetUserByIDSeesRoleChanges() {
	user, err := s.register("alice", "a@x.com")
	s.Require().NoError(err)
	s.Require().NoError(s.users.SetRole(user.ID, models.RoleAuthor))

	got, err := s.auth.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleAuthor, got.Role)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

// brokenUserStore fails every read with an internal error.
type brokenUserStore struct {
	store.UserStore
	err error
}

func (b brokenUserStore) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, b.err
}

func (b brokenUserStore) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, b.err
}

func TestAuthServicePropagatesStoreFailures(t *testing.T) {
	boom := errors.Join(store.ErrInternal, errors.New("connection refused"))
	auth := NewAuthService(brokenUserStore{err: boom}, 0)

	_, err := auth.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInternal)
	assert.NotErrorIs(t, err, store.ErrConflict)

	_, err = auth.Login(context.Background(), "alice", "secret123")
	assert.ErrorIs(t, err, store.ErrInternal)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
