package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkwell/blog/config"
	"github.com/inkwell/blog/controllers"
	"github.com/inkwell/blog/middleware"
	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config   config.AppConfig
	Posts    services.PostService
	Auth     services.AuthService
	Users    store.UserStore
	Sessions *session.Manager
	// AccessLog receives one line per request; nil disables request logging.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.AccessLog != nil {
		r.Use(utils.Ginzap(d.AccessLog, time.RFC3339, true))
	}
	r.Use(utils.RecoveryWithZap(utils.Logger, true))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	postController := controllers.NewPostController(d.Posts, cfg.AuthEnabled, cfg.DefaultAuthor)

	api := r.Group("/api/v1")

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", postController.GetPost)

	if !cfg.AuthEnabled {
		postsGroup.POST("", postController.CreatePost)
		postsGroup.PUT("/:id", postController.UpdatePost)
	} else {
		authController := controllers.NewAuthController(d.Auth, d.Sessions)
		limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
		writers := middleware.Authorize(d.Sessions, d.Users, cfg.StoreTimeout(), models.RoleAuthor, models.RoleAdmin)
		anyone := middleware.Authorize(d.Sessions, d.Users, cfg.StoreTimeout(), models.RoleUser, models.RoleAuthor, models.RoleAdmin)

		postsGroup.POST("", writers, postController.CreatePost)
		postsGroup.PUT("/:id", writers, postController.UpdatePost)

		authGroup := api.Group("/auth")
		authGroup.POST("/register", limiter.Middleware(), authController.Register)
		authGroup.POST("/login", limiter.Middleware(), authController.Login)
		authGroup.POST("/logout", authController.Logout)
		authGroup.GET("/me", anyone, authController.Me)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
