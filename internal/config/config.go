package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by the persistence layer.
const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Membership MembershipConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Realtime   RealtimeConfig
	Worker     WorkerConfig
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

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string
}

// MongoConfig holds document store connection values.
type MongoConfig struct {
	URI      string
	Database string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
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
}

// MembershipConfig tunes the attendee synchronizer.
type MembershipConfig struct {
	MaxRetries int
	// BroadcastNoopLeave re-broadcasts the current count when a LEAVE finds
	// the user absent from the attendee set.
	BroadcastNoopLeave bool
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins string
}

// RateLimitConfig bounds requests per client IP on auth routes.
type RateLimitConfig struct {
	PerMinute int64
}

// RealtimeConfig controls the websocket channel.
type RealtimeConfig struct {
	RequireAuth bool
}

// WorkerConfig schedules background jobs.
type WorkerConfig struct {
	ArchiveIntervalSeconds int
}

// ArchiveInterval returns how often finished events are archived. Zero disables the job.
func (w WorkerConfig) ArchiveInterval() time.Duration {
	if w.ArchiveIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(w.ArchiveIntervalSeconds) * time.Second
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo))
	switch driver {
	case StoreDriverMongo, StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "event-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "5000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: driver,
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database: getEnv("MONGO_DATABASE", "events"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", false),
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "event-service"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Membership: MembershipConfig{
			MaxRetries:         getEnvAsInt("MEMBERSHIP_MAX_RETRIES", 5),
			BroadcastNoopLeave: getEnvAsBool("MEMBERSHIP_BROADCAST_NOOP_LEAVE", true),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: int64(getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100)),
		},
		Realtime: RealtimeConfig{
			RequireAuth: getEnvAsBool("REALTIME_REQUIRE_AUTH", false),
		},
		Worker: WorkerConfig{
			ArchiveIntervalSeconds: getEnvAsInt("WORKER_ARCHIVE_INTERVAL_SECONDS", 300),
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

// Channel returns the pub/sub channel name for a notification topic.
func (r RedisConfig) Channel(topic string) string {
	if r.ChannelPrefix == "" {
		return topic
	}
	return r.ChannelPrefix + ":" + topic
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
