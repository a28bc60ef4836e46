package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/middleware"
	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/utils"
)

// PostController serves the post lifecycle: list, read, create, edit.
type PostController struct {
	posts         services.PostService
	authEnabled   bool
	defaultAuthor string
}

// NewPostController creates a PostController. With authentication disabled
// every post is attributed to defaultAuthor.
func NewPostController(posts services.PostService, authEnabled bool, defaultAuthor string) *PostController {
	return &PostController{posts: posts, authEnabled: authEnabled, defaultAuthor: defaultAuthor}
}

// CreatePost accepts the "new post" form as JSON or urlencoded fields.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title         string `json:"title" form:"title" binding:"required"`
		Content       string `json:"content" form:"content" binding:"required"`
		FeaturedImage string `json:"featured_image" form:"featured_image"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	in := services.PostInput{Title: req.Title, Content: req.Content}
	if req.FeaturedImage != "" {
		in.FeaturedImage = &req.FeaturedImage
	}

	post, err := p.posts.CreatePost(ctx.Request.Context(), in, p.author(ctx))
	if err != nil {
		respondError(ctx, "create post", err)
		return
	}
	ctx.Header("Location", "/api/v1/posts/"+strconv.FormatUint(post.ID, 10))
	utils.Created(ctx, gin.H{"post": post})
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parsePostID(ctx)
	if !ok {
		return
	}
	post, err := p.posts.GetPost(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, "get post", err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost applies the "edit post" form. Omitted fields keep their value.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := parsePostID(ctx)
	if !ok {
		return
	}
	var req struct {
		Title         *string `json:"title" form:"title"`
		Content       *string `json:"content" form:"content"`
		FeaturedImage *string `json:"featured_image" form:"featured_image"`
		ClearImage    bool    `json:"clear_image" form:"clear_image"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	post, err := p.posts.UpdatePost(ctx.Request.Context(), id, services.PostPatch{
		Title:         req.Title,
		Content:       req.Content,
		FeaturedImage: req.FeaturedImage,
		ClearImage:    req.ClearImage,
	})
	if err != nil {
		respondError(ctx, "update post", err)
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns posts newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	out, err := p.posts.ListPosts(ctx.Request.Context(), page, pageSize)
	if err != nil {
		respondError(ctx, "list posts", err)
		return
	}
	utils.Success(ctx, out)
}

func (p *PostController) author(ctx *gin.Context) string {
	if !p.authEnabled {
		return p.defaultAuthor
	}
	if name, ok := ctx.Get(middleware.ContextUsernameKey); ok {
		if s, _ := name.(string); s != "" {
			return s
		}
	}
	return p.defaultAuthor
}

func parsePostID(ctx *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid post id")
		return 0, false
	}
	return id, true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
