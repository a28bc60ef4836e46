package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/inkwell/blog/config"
	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type postBody struct {
	Post models.Post `json:"post"`
}

func testConfig(authEnabled bool) config.AppConfig {
	return config.AppConfig{
		GinMode:            "test",
		AuthEnabled:        authEnabled,
		DefaultAuthor:      "Yiannis Morfos",
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
	}
}

func newRouter(cfg config.AppConfig) (*gin.Engine, *store.MemoryUserStore) {
	users := store.NewMemoryUserStore()
	sessions := session.NewManager(session.NewMemoryBackend(100), session.Options{
		CookieName: "blog_session",
		Secret:     []byte("test-secret"),
		TTL:        time.Hour,
	})
	r := SetupRouter(Deps{
		Config:   cfg,
		Posts:    services.NewPostService(store.NewMemoryPostStore(), utils.NewCache(nil), 0),
		Auth:     services.NewAuthService(users, 0),
		Users:    users,
		Sessions: sessions,
	})
	return r, users
}

func do(r http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

type BlogAPITestSuite struct {
	suite.Suite
	router *gin.Engine
	users  *store.MemoryUserStore
}

func (s *BlogAPITestSuite) SetupTest() {
	s.router, s.users = newRouter(testConfig(true))
}

func (s *BlogAPITestSuite) register(username, email, password string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, email, password)
	return do(s.router, http.MethodPost, "/api/v1/auth/register", body, nil)
}

func (s *BlogAPITestSuite) login(username, password string) (*httptest.ResponseRecorder, *http.Cookie) {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	w := do(s.router, http.MethodPost, "/api/v1/auth/login", body, nil)
	for _, c := range w.Result().Cookies() {
		if c.Name == "blog_session" {
			return w, c
		}
	}
	return w, nil
}

// author registers a user, promotes it and logs it in.
func (s *BlogAPITestSuite) author(username string) *http.Cookie {
	w := s.register(username, username+"@example.com", "secret123")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	u, err := s.users.GetByUsername(context.Background(), username)
	s.Require().NoError(err)
	s.Require().NoError(s.users.SetRole(u.ID, models.RoleAuthor))
	_, cookie := s.login(username, "secret123")
	s.Require().NotNil(cookie)
	return cookie
}

func (s *BlogAPITestSuite) TestRegisterDuplicateEmail() {
	w := s.register("alice", "a@x.com", "secret123")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		User struct {
			Username string      `json:"username"`
			Role     models.Role `json:"role"`
		} `json:"user"`
	}
	decodeEnvelope(s.T(), w, &created)
	s.Equal("alice", created.User.Username)
	s.Equal(models.RoleUser, created.User.Role)
	s.NotContains(w.Body.String(), "password")

	w = s.register("bob", "a@x.com", "secret123")
	s.Equal(http.StatusConflict, w.Code)
	var conflict struct {
		Field string `json:"field"`
	}
	env := decodeEnvelope(s.T(), w, &conflict)
	s.Equal(40901, env.Code)
	s.Equal("email", conflict.Field)

	w = s.register("alice", "other@x.com", "secret123")
	s.Equal(http.StatusConflict, w.Code)
	decodeEnvelope(s.T(), w, &conflict)
	s.Equal("username", conflict.Field)
}

func (s *BlogAPITestSuite) TestRegisterRejectsBadInput() {
	w := do(s.router, http.MethodPost, "/api/v1/auth/register", `{"username":"alice"}`, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.register("alice", "a@x.com", "123")
	s.Equal(http.StatusBadRequest, w.Code)
	var detail struct {
		Field string `json:"field"`
	}
	decodeEnvelope(s.T(), w, &detail)
	s.Equal("password", detail.Field)
}

func (s *BlogAPITestSuite) TestLogin() {
	s.Require().Equal(http.StatusCreated, s.register("alice", "a@x.com", "secret123").Code)

	w, cookie := s.login("alice", "wrong-password")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(40106, decodeEnvelope(s.T(), w, nil).Code)
	s.Nil(cookie)

	w, cookie = s.login("nobody", "secret123")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Nil(cookie)

	w, cookie = s.login("alice", "secret123")
	s.Equal(http.StatusOK, w.Code)
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)

	w = do(s.router, http.MethodGet, "/api/v1/auth/me", "", cookie)
	s.Require().Equal(http.StatusOK, w.Code)
	var me struct {
		Username string      `json:"username"`
		Role     models.Role `json:"role"`
	}
	decodeEnvelope(s.T(), w, &me)
	s.Equal("alice", me.Username)
	s.Equal(models.RoleUser, me.Role)
}

func (s *BlogAPITestSuite) TestUserRoleCannotWrite() {
	s.Require().Equal(http.StatusCreated, s.register("alice", "a@x.com", "secret123").Code)
	_, cookie := s.login("alice", "secret123")
	s.Require().NotNil(cookie)

	w := do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World"}`, cookie)
	s.Equal(http.StatusForbidden, w.Code)

	w = do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World"}`, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *BlogAPITestSuite) TestPostFlow() {
	cookie := s.author("alice")

	w := do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World"}`, cookie)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created postBody
	decodeEnvelope(s.T(), w, &created)
	s.Equal("alice", created.Post.Author)
	s.Equal(fmt.Sprintf("/api/v1/posts/%d", created.Post.ID), w.Header().Get("Location"))

	path := fmt.Sprintf("/api/v1/posts/%d", created.Post.ID)
	w = do(s.router, http.MethodGet, path, "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var got postBody
	decodeEnvelope(s.T(), w, &got)
	s.Equal("Hello", got.Post.Title)
	s.Equal("World", got.Post.Content)

	w = do(s.router, http.MethodPut, path, `{"title":"Hi"}`, cookie)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = do(s.router, http.MethodGet, path, "", nil)
	decodeEnvelope(s.T(), w, &got)
	s.Equal("Hi", got.Post.Title)
	s.Equal("World", got.Post.Content)
	s.Equal("alice", got.Post.Author)

	w = do(s.router, http.MethodGet, "/api/v1/posts?page=1&page_size=10", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page services.PostPage
	decodeEnvelope(s.T(), w, &page)
	s.EqualValues(1, page.Total)
	s.Require().Len(page.Items, 1)
	s.Equal("Hi", page.Items[0].Title)
}

func (s *BlogAPITestSuite) TestPostErrors() {
	cookie := s.author("alice")

	w := do(s.router, http.MethodGet, "/api/v1/posts/1", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(40401, decodeEnvelope(s.T(), w, nil).Code)

	w = do(s.router, http.MethodPut, "/api/v1/posts/1", `{"title":"x"}`, cookie)
	s.Equal(http.StatusNotFound, w.Code)

	w = do(s.router, http.MethodGet, "/api/v1/posts/abc", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"<br>","content":"c"}`, cookie)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *BlogAPITestSuite) TestLogoutEndsSession() {
	cookie := s.author("alice")

	w := do(s.router, http.MethodPost, "/api/v1/auth/logout", "", cookie)
	s.Require().Equal(http.StatusOK, w.Code)

	w = do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World"}`, cookie)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *BlogAPITestSuite) TestDemotionIsImmediate() {
	cookie := s.author("alice")
	u, err := s.users.GetByUsername(context.Background(), "alice")
	s.Require().NoError(err)
	s.Require().NoError(s.users.SetRole(u.ID, models.RoleUser))

	w := do(s.router, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World"}`, cookie)
	s.Equal(http.StatusForbidden, w.Code)
}

func TestBlogAPITestSuite(t *testing.T) {
	suite.Run(t, new(BlogAPITestSuite))
}

func TestAuthDisabledIteration(t *testing.T) {
	r, _ := newRouter(testConfig(false))

	w := do(r, http.MethodPost, "/api/v1/posts", `{"title":"Hello","content":"World","featured_image":"cover.png"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created postBody
	decodeEnvelope(t, w, &created)
	assert.Equal(t, "Yiannis Morfos", created.Post.Author)
	require.NotNil(t, created.Post.FeaturedImage)
	assert.Equal(t, "cover.png", *created.Post.FeaturedImage)

	w = do(r, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", created.Post.ID), `{"content":"Updated"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/auth/login", `{"username":"a","password":"b"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormEncodedPost(t *testing.T) {
	r, _ := newRouter(testConfig(false))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader("title=Hello&content=World"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestOperationalRoutes(t *testing.T) {
	r, _ := newRouter(testConfig(true))

	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blog_http_requests_total")

	w = do(r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, decodeEnvelope(t, w, nil).Code)
}
