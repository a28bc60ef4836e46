package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

const (
	postDetailPrefix = "cache:post:detail:"
	postListPrefix   = "cache:posts:list:"

	postDetailTTL = 5 * time.Minute
	postListTTL   = time.Minute

	defaultPageSize = 10
	maxPageSize     = 100
)

// PostInput is the author-supplied part of a post.
type PostInput struct {
	Title         string
	Content       string
	FeaturedImage *string
}

// PostPatch is a partial edit. Nil fields keep their current value;
// ClearImage removes the featured image.
type PostPatch struct {
	Title         *string
	Content       *string
	FeaturedImage *string
	ClearImage    bool
}

// PostPage is one page of the post listing.
type PostPage struct {
	Items      []models.Post `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// PostService implements the post lifecycle: create, read, edit. Posts are never deleted.
type PostService interface {
	CreatePost(ctx context.Context, in PostInput, author string) (*models.Post, error)
	GetPost(ctx context.Context, id uint64) (*models.Post, error)
	UpdatePost(ctx context.Context, id uint64, patch PostPatch) (*models.Post, error)
	ListPosts(ctx context.Context, page, pageSize int) (*PostPage, error)
}

type postService struct {
	posts   store.PostStore
	cache   *utils.Cache
	timeout time.Duration
	now     func() time.Time
}

// NewPostService creates a PostService. cache may be nil.
func NewPostService(posts store.PostStore, cache *utils.Cache, timeout time.Duration) PostService {
	return &postService{posts: posts, cache: cache, timeout: timeout, now: time.Now}
}

func (s *postService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *postService) CreatePost(ctx context.Context, in PostInput, author string) (*models.Post, error) {
	fields, err := cleanPostInput(in)
	if err != nil {
		return nil, err
	}
	post := &models.Post{
		Title:         fields.Title,
		Content:       fields.Content,
		FeaturedImage: fields.FeaturedImage,
		Author:        author,
		DatePosted:    s.now(),
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.posts.Create(sctx, post); err != nil {
		return nil, err
	}
	s.cache.InvalidateByPrefix(ctx, postListPrefix)
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	key := postDetailKey(id)
	var cached models.Post
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	post, err := s.posts.GetByID(sctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSONIfAbsent(ctx, key, post, postDetailTTL)
	return post, nil
}

// UpdatePost applies patch over the stored post and writes title, content
// and featured image back. Author and DatePosted never change.
func (s *postService) UpdatePost(ctx context.Context, id uint64, patch PostPatch) (*models.Post, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.posts.GetByID(sctx, id)
	if err != nil {
		return nil, err
	}
	in := PostInput{Title: current.Title, Content: current.Content, FeaturedImage: current.FeaturedImage}
	if patch.Title != nil {
		in.Title = *patch.Title
	}
	if patch.Content != nil {
		in.Content = *patch.Content
	}
	if patch.FeaturedImage != nil {
		in.FeaturedImage = patch.FeaturedImage
	}
	if patch.ClearImage {
		in.FeaturedImage = nil
	}
	fields, err := cleanPostInput(in)
	if err != nil {
		return nil, err
	}

	if err := s.posts.Update(sctx, id, fields); err != nil {
		return nil, err
	}
	fields.Apply(current)
	// write through so a concurrent read-through fill of the old row loses
	s.cache.SetJSON(ctx, postDetailKey(id), current, postDetailTTL)
	s.cache.InvalidateByPrefix(ctx, postListPrefix)
	return current, nil
}

func (s *postService) ListPosts(ctx context.Context, page, pageSize int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)
	key := fmt.Sprintf("%spage=%d:size=%d", postListPrefix, page, pageSize)
	var cached PostPage
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, total, err := s.posts.List(sctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := &PostPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
	s.cache.SetJSON(ctx, key, out, postListTTL)
	return out, nil
}

// cleanPostInput sanitizes untrusted input. The featured image is an opaque
// file name and is stored verbatim; an empty name means no image.
func cleanPostInput(in PostInput) (models.PostFields, error) {
	title := utils.SanitizePlain(in.Title)
	if title == "" {
		return models.PostFields{}, &ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if len([]rune(title)) > 255 {
		return models.PostFields{}, &ValidationError{Field: "title", Reason: "must be at most 255 characters"}
	}
	content := utils.SanitizeContent(in.Content)
	if strings.TrimSpace(content) == "" {
		return models.PostFields{}, &ValidationError{Field: "content", Reason: "cannot be empty"}
	}
	var image *string
	if in.FeaturedImage != nil && *in.FeaturedImage != "" {
		v := *in.FeaturedImage
		image = &v
	}
	return models.PostFields{Title: title, Content: content, FeaturedImage: image}, nil
}

func postDetailKey(id uint64) string {
	return fmt.Sprintf("%s%d", postDetailPrefix, id)
}
