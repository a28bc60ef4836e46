package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkwell/blog/models"
)

// PostStore owns all posts. Lookup by id is the only access path for a single post.
type PostStore interface {
	// Create assigns a new unique id to p, persists it and returns the id.
	Create(ctx context.Context, p *models.Post) (uint64, error)
	// GetByID returns ErrNotFound when no post has the id.
	GetByID(ctx context.Context, id uint64) (*models.Post, error)
	// Update overwrites title, content and featured image. Unknown ids yield
	// ErrNotFound and never create a post.
	Update(ctx context.Context, id uint64, f models.PostFields) error
	// List returns posts newest first.
	List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error)
	Count(ctx context.Context) (int64, error)
}

// MemoryPostStore keeps posts in process memory. Ids are millisecond
// timestamps, bumped when needed so they stay strictly increasing.
type MemoryPostStore struct {
	mu     sync.RWMutex
	posts  []models.Post
	byID   map[uint64]int
	lastID uint64
	now    func() time.Time
}

// NewMemoryPostStore creates an empty in-memory post store.
func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{
		byID: make(map[uint64]int),
		now:  time.Now,
	}
}

func (s *MemoryPostStore) nextID() uint64 {
	id := uint64(s.now().UnixMilli())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *MemoryPostStore) Create(ctx context.Context, p *models.Post) (uint64, error) {
	if err := ctx.Err(); err != nil {
		observe("memory", "post_create", err)
		return 0, internal("create post", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID()
	if p.DatePosted.IsZero() {
		p.DatePosted = s.now()
	}
	s.posts = append(s.posts, clonePost(*p))
	s.byID[p.ID] = len(s.posts) - 1
	observe("memory", "post_create", nil)
	return p.ID, nil
}

func (s *MemoryPostStore) GetByID(ctx context.Context, id uint64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		observe("memory", "post_get", ErrNotFound)
		return nil, ErrNotFound
	}
	p := clonePost(s.posts[idx])
	observe("memory", "post_get", nil)
	return &p, nil
}

func (s *MemoryPostStore) Update(ctx context.Context, id uint64, f models.PostFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		observe("memory", "post_update", ErrNotFound)
		return ErrNotFound
	}
	f.FeaturedImage = cloneString(f.FeaturedImage)
	f.Apply(&s.posts[idx])
	observe("memory", "post_update", nil)
	return nil
}

func (s *MemoryPostStore) List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, pageSize = normalizePage(page, pageSize)
	total := int64(len(s.posts))
	sorted := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		sorted = append(sorted, clonePost(p))
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	offset := (page - 1) * pageSize
	if offset >= len(sorted) {
		observe("memory", "post_list", nil)
		return []models.Post{}, total, nil
	}
	end := offset + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	observe("memory", "post_list", nil)
	return sorted[offset:end], total, nil
}

func (s *MemoryPostStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.posts)), nil
}

func clonePost(p models.Post) models.Post {
	p.FeaturedImage = cloneString(p.FeaturedImage)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}
