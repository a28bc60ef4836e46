package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/inkwell/blog/models"
)

// GormUserStore persists users in the "users" table. The database must
// translate unique violations (gorm.Config.TranslateError).
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore creates a credential store backed by db.
func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "user_get", "id = ?", id)
}

func (s *GormUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "user_get", "username = ?", username)
}

func (s *GormUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "user_get", "LOWER(email) = LOWER(?)", email)
}

func (s *GormUserStore) first(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observe("gorm", op, ErrNotFound)
			return nil, ErrNotFound
		}
		observe("gorm", op, err)
		return nil, internal("load user", err)
	}
	observe("gorm", op, nil)
	return &user, nil
}

func (s *GormUserStore) Create(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if err == nil {
		observe("gorm", "user_create", nil)
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		observe("gorm", "user_create", err)
		return internal("create user", err)
	}
	observe("gorm", "user_create", ErrConflict)
	// Lost a race against a concurrent registration: report which field collided.
	if _, lookupErr := s.GetByEmail(ctx, u.Email); lookupErr == nil {
		return &ConflictError{Field: "email"}
	}
	return &ConflictError{Field: "username"}
}
