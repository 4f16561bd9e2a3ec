package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the kiosk daemon.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Supabase     SupabaseConfig
	Camera       CameraConfig
	Analysis     AnalysisConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the self-hosted backend.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr keeps the
// durable slot in memory.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	DemoDelay             time.Duration
	OAuthRedirectURL      string
}

// SupabaseConfig points at the hosted auth/storage product.
type SupabaseConfig struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
}

// Enabled reports whether the hosted backend is configured. The placeholder
// values shipped in sample files count as unset.
func (s SupabaseConfig) Enabled() bool {
	if s.URL == "" || s.AnonKey == "" {
		return false
	}
	return !strings.HasPrefix(s.URL, "YOUR_") && !strings.HasPrefix(s.AnonKey, "YOUR_")
}

// CameraConfig selects the capture driver.
type CameraConfig struct {
	Driver         string
	Devices        int
	Width          int
	Height         int
	DenyPermission bool
	JPEGQuality    int
	DefaultFacing  string
}

// AnalysisConfig tunes the mock analysis engine.
type AnalysisConfig struct {
	Delay time.Duration
	Seed  uint64
}

// NotificationConfig holds toast defaults.
type NotificationConfig struct {
	DefaultDuration time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	seed, err := strconv.ParseUint(getEnv("ANALYSIS_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_SEED: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "vitalwarrior"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "vitalwarrior:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DemoDelay:             getEnvAsDuration("AUTH_DEMO_DELAY", time.Second),
			OAuthRedirectURL:      getEnv("AUTH_OAUTH_REDIRECT_URL", "http://127.0.0.1:8080"),
		},
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			Timeout:   getEnvAsDuration("SUPABASE_TIMEOUT", 10*time.Second),
		},
		Camera: CameraConfig{
			Driver:         getEnv("CAMERA_DRIVER", "synthetic"),
			Devices:        getEnvAsInt("CAMERA_DEVICES", 1),
			Width:          getEnvAsInt("CAMERA_WIDTH", 1280),
			Height:         getEnvAsInt("CAMERA_HEIGHT", 720),
			DenyPermission: getEnvAsBool("CAMERA_DENY_PERMISSION", false),
			JPEGQuality:    getEnvAsInt("CAMERA_JPEG_QUALITY", 80),
			DefaultFacing:  getEnv("CAMERA_FACING", "user"),
		},
		Analysis: AnalysisConfig{
			Delay: getEnvAsDuration("ANALYSIS_DELAY", 2*time.Second),
			Seed:  seed,
		},
		Notification: NotificationConfig{
			DefaultDuration: getEnvAsDuration("NOTIFY_DEFAULT_DURATION", 5*time.Second),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
