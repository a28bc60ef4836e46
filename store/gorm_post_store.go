package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/inkwell/blog/models"
)

// GormPostStore persists posts in the "posts" table.
type GormPostStore struct {
	db *gorm.DB
}

// NewGormPostStore creates a post store backed by db.
func NewGormPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db}
}

func (s *GormPostStore) Create(ctx context.Context, p *models.Post) (uint64, error) {
	p.ID = 0
	if p.DatePosted.IsZero() {
		p.DatePosted = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		observe("gorm", "post_create", err)
		return 0, internal("create post", err)
	}
	observe("gorm", "post_create", nil)
	return p.ID, nil
}

func (s *GormPostStore) GetByID(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observe("gorm", "post_get", ErrNotFound)
			return nil, ErrNotFound
		}
		observe("gorm", "post_get", err)
		return nil, internal("get post", err)
	}
	observe("gorm", "post_get", nil)
	return &post, nil
}

// Update issues a single-row UPDATE; zero affected rows means the id is unknown.
func (s *GormPostStore) Update(ctx context.Context, id uint64, f models.PostFields) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
		"title":         f.Title,
		"content":       f.Content,
		"featuredimage": f.FeaturedImage,
	})
	if res.Error != nil {
		observe("gorm", "post_update", res.Error)
		return internal("update post", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows when the values are unchanged.
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
			observe("gorm", "post_update", err)
			return internal("update post", err)
		}
		if n == 0 {
			observe("gorm", "post_update", ErrNotFound)
			return ErrNotFound
		}
	}
	observe("gorm", "post_update", nil)
	return nil
}

func (s *GormPostStore) List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		observe("gorm", "post_list", err)
		return nil, 0, internal("count posts", err)
	}
	posts := make([]models.Post, 0, pageSize)
	err := s.db.WithContext(ctx).
		Order("dateposted DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		observe("gorm", "post_list", err)
		return nil, 0, internal("list posts", err)
	}
	observe("gorm", "post_list", nil)
	return posts, total, nil
}

func (s *GormPostStore) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return 0, internal("count posts", err)
	}
	return total, nil
}
