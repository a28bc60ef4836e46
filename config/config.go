package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults and must come from the config file or the environment.
type AppConfig struct {
	AppPort string
	GinMode string
	// Storage: memory keeps posts and users in process memory.
	StoreDriver     string
	DatabaseURI     string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	StoreTimeoutSec int
	// Authentication
	AuthEnabled       bool
	SessionSecret     string
	SessionTTLHours   int
	SessionCookieName string
	CookieSecure      bool
	SessionMaxEntries int
	// Posts created while authentication is disabled are attributed to DefaultAuthor.
	DefaultAuthor string
	// Created at startup with role admin when set and not registered yet.
	BootstrapAdminUsername string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	RateLimitPerMinute     int
	AllowedOrigins         []string
	// Redis for sessions and post caching; empty host disables redis.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	GinLogPath    string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// StoreTimeout bounds every store and session call made for a request.
func (c AppConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSec) * time.Second
}

// SessionTTL is the lifetime of a login session.
func (c AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
//
// Precedence: .env (into the process environment) -> config file -> defaults -> environment overrides.
func Load(path string) AppConfig {
	if loaded {
		return cfg
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg.AuthEnabled = true
	if path == "" {
		path = filepath.Join("config", "config.json")
	}
	if err := loadJSONConfig(path, &cfg); err != nil {
		log.Fatalf("invalid config file %s: %v", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.AuthEnabled && cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set when authentication is enabled")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load("")
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads a grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw struct {
		App struct {
			AppPort            string   `json:"AppPort"`
			GinMode            string   `json:"GinMode"`
			RateLimitPerMinute int      `json:"RateLimitPerMinute"`
			AllowedOrigins     []string `json:"AllowedOrigins"`
			DefaultAuthor      string   `json:"DefaultAuthor"`
		} `json:"app"`
		Store struct {
			Driver      string `json:"Driver"`
			DatabaseURI string `json:"DatabaseURI"`
			Host        string `json:"Host"`
			Port        string `json:"Port"`
			User        string `json:"User"`
			Password    string `json:"Password"`
			Name        string `json:"Name"`
			TimeoutSec  int    `json:"TimeoutSec"`
		} `json:"store"`
		Auth struct {
			Enabled                *bool  `json:"Enabled"`
			SessionSecret          string `json:"SessionSecret"`
			SessionTTLHours        int    `json:"SessionTTLHours"`
			CookieName             string `json:"CookieName"`
			CookieSecure           bool   `json:"CookieSecure"`
			SessionMaxEntries      int    `json:"SessionMaxEntries"`
			BootstrapAdminUsername string `json:"BootstrapAdminUsername"`
			BootstrapAdminEmail    string `json:"BootstrapAdminEmail"`
			BootstrapAdminPassword string `json:"BootstrapAdminPassword"`
		} `json:"auth"`
		Redis struct {
			Host     string `json:"Host"`
			Port     int    `json:"Port"`
			DB       int    `json:"DB"`
			Password string `json:"Password"`
		} `json:"redis"`
		Log struct {
			Level      string `json:"Level"`
			Path       string `json:"Path"`
			GinPath    string `json:"GinPath"`
			MaxSizeMB  int    `json:"MaxSizeMB"`
			MaxBackups int    `json:"MaxBackups"`
			MaxAgeDays int    `json:"MaxAgeDays"`
			Compress   bool   `json:"Compress"`
		} `json:"log"`
	}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.GinMode = raw.App.GinMode
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.DefaultAuthor = raw.App.DefaultAuthor

	out.StoreDriver = raw.Store.Driver
	out.DatabaseURI = raw.Store.DatabaseURI
	out.DBHost = raw.Store.Host
	out.DBPort = raw.Store.Port
	out.DBUser = raw.Store.User
	out.DBPassword = raw.Store.Password
	out.DBName = raw.Store.Name
	out.StoreTimeoutSec = raw.Store.TimeoutSec

	if raw.Auth.Enabled != nil {
		out.AuthEnabled = *raw.Auth.Enabled
	}
	out.SessionSecret = raw.Auth.SessionSecret
	out.SessionTTLHours = raw.Auth.SessionTTLHours
	out.SessionCookieName = raw.Auth.CookieName
	out.CookieSecure = raw.Auth.CookieSecure
	out.SessionMaxEntries = raw.Auth.SessionMaxEntries
	out.BootstrapAdminUsername = raw.Auth.BootstrapAdminUsername
	out.BootstrapAdminEmail = raw.Auth.BootstrapAdminEmail
	out.BootstrapAdminPassword = raw.Auth.BootstrapAdminPassword

	out.RedisHost = raw.Redis.Host
	out.RedisPort = raw.Redis.Port
	out.RedisDB = raw.Redis.DB
	out.RedisPassword = raw.Redis.Password

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.GinLogPath = raw.Log.GinPath
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = DriverMemory
	}
	if c.StoreTimeoutSec == 0 {
		c.StoreTimeoutSec = 3
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "blog_session"
	}
	if c.SessionMaxEntries == 0 {
		c.SessionMaxEntries = 10000
	}
	if c.DefaultAuthor == "" {
		c.DefaultAuthor = "Yiannis Morfos"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GinLogPath == "" {
		c.GinLogPath = "logs/gin.log"
	}
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("PORT", c.AppPort)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.StoreTimeoutSec = envInt("STORE_TIMEOUT_SEC", c.StoreTimeoutSec)

	c.AuthEnabled = envBool("AUTH_ENABLED", c.AuthEnabled)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.SessionTTLHours = envInt("SESSION_TTL_HOURS", c.SessionTTLHours)
	c.SessionCookieName = getEnv("SESSION_COOKIE_NAME", c.SessionCookieName)
	c.CookieSecure = envBool("COOKIE_SECURE", c.CookieSecure)
	c.DefaultAuthor = getEnv("DEFAULT_AUTHOR", c.DefaultAuthor)
	c.BootstrapAdminUsername = getEnv("BOOTSTRAP_ADMIN_USERNAME", c.BootstrapAdminUsername)
	c.BootstrapAdminEmail = getEnv("BOOTSTRAP_ADMIN_EMAIL", c.BootstrapAdminEmail)
	c.BootstrapAdminPassword = getEnv("BOOTSTRAP_ADMIN_PASSWORD", c.BootstrapAdminPassword)
	c.RateLimitPerMinute = envInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitCSV(v)
	}

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = envInt("REDIS_PORT", c.RedisPort)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.GinLogPath = getEnv("GIN_LOG_PATH", c.GinLogPath)
	c.LogMaxSizeMB = envInt("LOG_MAX_SIZE_MB", c.LogMaxSizeMB)
	c.LogMaxBackups = envInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAgeDays = envInt("LOG_MAX_AGE_DAYS", c.LogMaxAgeDays)
	c.LogCompress = envBool("LOG_COMPRESS", c.LogCompress)
}

func envInt(key string, def int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("ignoring non-numeric %s=%q", key, v)
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := getEnv(key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("ignoring non-boolean %s=%q", key, v)
	}
	return def
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
