package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docopt/docopt.go"
	"go.uber.org/zap"

	"github.com/inkwell/blog/config"
	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/routes"
	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

const usage = `Blog API server.

Usage:
  blog [--config=<path>] [--port=<port>]
  blog (-h | --help)

Options:
  -h --help        Show this screen.
  --config=<path>  Path to the JSON config file [default: config/config.json].
  --port=<port>    Listen port, overrides the configured one.
`

func main() {
	arguments, err := docopt.ParseDoc(usage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}
	configPath, _ := arguments.String("--config")

	cfg := config.Load(configPath)
	if port, err := arguments.String("--port"); err == nil && port != "" {
		cfg.AppPort = port
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	posts, users, err := openStores(cfg)
	if err != nil {
		utils.Sugar.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}

	rdb := utils.OpenRedis(context.Background(), cfg)
	var backend session.Backend
	if rdb != nil {
		defer rdb.Close()
		backend = session.NewRedisBackend(rdb, cfg.StoreTimeout())
	} else {
		backend = session.NewMemoryBackend(cfg.SessionMaxEntries)
	}
	sessions := session.NewManager(backend, session.Options{
		CookieName: cfg.SessionCookieName,
		Secret:     []byte(cfg.SessionSecret),
		TTL:        cfg.SessionTTL(),
		Secure:     cfg.CookieSecure,
	})

	authService := services.NewAuthService(users, cfg.StoreTimeout())
	postService := services.NewPostService(posts, utils.NewCache(rdb), cfg.StoreTimeout())

	if cfg.AuthEnabled && cfg.BootstrapAdminUsername != "" {
		bootstrapAdmin(authService, cfg)
	}

	accessLog, err := utils.NewRollingFileLogger(cfg.GinLogPath, cfg)
	if err != nil {
		utils.Sugar.Warnf("access log disabled: %v", err)
		accessLog = nil
	}

	r := routes.SetupRouter(routes.Deps{
		Config:    cfg,
		Posts:     postService,
		Auth:      authService,
		Users:     users,
		Sessions:  sessions,
		AccessLog: accessLog,
	})

	utils.Logger.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("auth", cfg.AuthEnabled),
		zap.Bool("redis", rdb != nil),
	)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func openStores(cfg config.AppConfig) (store.PostStore, store.UserStore, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return store.NewMemoryPostStore(), store.NewMemoryUserStore(), nil
	}
	db, err := config.InitDatabase(cfg, &models.Post{}, &models.User{})
	if err != nil {
		return nil, nil, err
	}
	return store.NewGormPostStore(db), store.NewGormUserStore(db), nil
}

func bootstrapAdmin(auth services.AuthService, cfg config.AppConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, created, err := auth.EnsureAdmin(ctx, services.RegisterInput{
		Username: cfg.BootstrapAdminUsername,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
	})
	if err != nil {
		utils.Sugar.Fatalf("bootstrap admin %q: %v", cfg.BootstrapAdminUsername, err)
	}
	if created {
		utils.Logger.Info("bootstrap admin created", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	}
}
