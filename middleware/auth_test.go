package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type AuthorizeTestSuite struct {
	suite.Suite
	users    *store.MemoryUserStore
	sessions *session.Manager
	router   *gin.Engine
}

func (s *AuthorizeTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.users = store.NewMemoryUserStore()
	s.sessions = session.NewManager(session.NewMemoryBackend(100), session.Options{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
	})

	s.router = gin.New()
	s.router.GET("/admin", Authorize(s.sessions, s.users, time.Second, models.RoleAdmin), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"user_id":  ctx.GetUint(ContextUserIDKey),
			"username": ctx.GetString(ContextUsernameKey),
		})
	})
}

func (s *AuthorizeTestSuite) createUser(name string, role models.Role) *models.User {
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "h", Role: role}
	s.Require().NoError(s.users.Create(context.Background(), u))
	return u
}

// login starts a session directly through the manager and returns its cookie.
func (s *AuthorizeTestSuite) login(u *models.User) *http.Cookie {
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/login", nil)
	s.Require().NoError(s.sessions.Create(ctx, session.Data{UserID: u.ID, Role: u.Role}))
	cookies := w.Result().Cookies()
	s.Require().Len(cookies, 1)
	return cookies[0]
}

func (s *AuthorizeTestSuite) get(cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthorizeTestSuite) TestNoSessionIsForbidden() {
	w := s.get(nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(40301, decode(s.T(), w).Code)
}

func (s *AuthorizeTestSuite) TestWrongRoleIsForbidden() {
	w := s.get(s.login(s.createUser("alice", models.RoleUser)))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(40302, decode(s.T(), w).Code)
}

func (s *AuthorizeTestSuite) TestAllowedRolePasses() {
	admin := s.createUser("root", models.RoleAdmin)
	w := s.get(s.login(admin))
	s.Require().Equal(http.StatusOK, w.Code)

	var body struct {
		UserID   uint   `json:"user_id"`
		Username string `json:"username"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(admin.ID, body.UserID)
	s.Equal("root", body.Username)
}

func (s *AuthorizeTestSuite) TestRoleChangeAppliesWithoutNewLogin() {
	alice := s.createUser("alice", models.RoleUser)
	cookie := s.login(alice)
	s.Equal(http.StatusForbidden, s.get(cookie).Code)

	s.Require().NoError(s.users.SetRole(alice.ID, models.RoleAdmin))
	s.Equal(http.StatusOK, s.get(cookie).Code)

	s.Require().NoError(s.users.SetRole(alice.ID, models.RoleUser))
	s.Equal(http.StatusForbidden, s.get(cookie).Code)
}

func (s *AuthorizeTestSuite) TestDeletedUserIsForbidden() {
	admin := s.createUser("root", models.RoleAdmin)
	cookie := s.login(admin)
	s.users.Delete(admin.ID)

	w := s.get(cookie)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(40303, decode(s.T(), w).Code)
}

func TestAuthorizeTestSuite(t *testing.T) {
	suite.Run(t, new(AuthorizeTestSuite))
}

type fixedSession struct {
	data *session.Data
	err  error
}

func (f fixedSession) Current(*gin.Context) (*session.Data, error) { return f.data, f.err }

type failingUsers struct {
	store.UserStore
}

func (failingUsers) GetByID(context.Context, uint) (*models.User, error) {
	return nil, errors.Join(store.ErrInternal, errors.New("db down"))
}

func TestAuthorizeBackendFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		sessions SessionSource
		users    store.UserStore
	}{
		{"session backend down", fixedSession{err: errors.New("redis down")}, store.NewMemoryUserStore()},
		{"credential store down", fixedSession{data: &session.Data{UserID: 1, Role: models.RoleAdmin}}, failingUsers{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", Authorize(tt.sessions, tt.users, time.Second, models.RoleAdmin), func(ctx *gin.Context) {
				ctx.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, 50301, decode(t, w).Code)
		})
	}
}

func TestAuthorizeIgnoresRoleInSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := store.NewMemoryUserStore()
	u := &models.User{Username: "alice", Email: "a@x.com", PasswordHash: "h"}
	require.NoError(t, users.Create(context.Background(), u))

	// the session claims admin but the store says user
	src := fixedSession{data: &session.Data{UserID: u.ID, Role: models.RoleAdmin}}
	r := gin.New()
	r.GET("/x", Authorize(src, users, time.Second, models.RoleAdmin), func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// deadlineUsers records the deadline of each role lookup.
type deadlineUsers struct {
	store.UserStore
	deadlines []bool
	block     bool
}

func (d *deadlineUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	_, ok := ctx.Deadline()
	d.deadlines = append(d.deadlines, ok)
	if d.block {
		<-ctx.Done()
		return nil, errors.Join(store.ErrInternal, ctx.Err())
	}
	return &models.User{ID: id, Username: "root", Role: models.RoleAdmin}, nil
}

func TestAuthorizeBoundsRoleLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := fixedSession{data: &session.Data{UserID: 1, Role: models.RoleAdmin}}

	serve := func(users store.UserStore, timeout time.Duration) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/x", Authorize(src, users, timeout, models.RoleAdmin), func(ctx *gin.Context) {
			ctx.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w
	}

	bounded := &deadlineUsers{}
	assert.Equal(t, http.StatusOK, serve(bounded, time.Second).Code)
	assert.Equal(t, []bool{true}, bounded.deadlines)

	unbounded := &deadlineUsers{}
	assert.Equal(t, http.StatusOK, serve(unbounded, 0).Code)
	assert.Equal(t, []bool{false}, unbounded.deadlines)

	hanging := &deadlineUsers{block: true}
	start := time.Now()
	w := serve(hanging, 50*time.Millisecond)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
}
