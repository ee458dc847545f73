package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Sigmax   Sigmax
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// AuthDisabled skips bearer validation on the SOAP endpoint. Development only.
	AuthDisabled bool
	// InboundRateLimit is the number of callbacks one caller may make per
	// InboundRateWindow. Zero disables the limit.
	InboundRateLimit  int
	InboundRateWindow time.Duration
}

// Sigmax configures the CityControl handoff.
type Sigmax struct {
	ServerURL          string
	AuthToken          string
	Timeout            time.Duration
	SendFailTimeout    time.Duration
	SweepInterval      time.Duration
	MaxRoundtrips      int
	Timezone           string
	Organisation       string
	Application        string
	InsecureSkipVerify bool
	BreakerThreshold   int
	BreakerCooldown    time.Duration
	// LockBackend is one of memory, redis, postgres.
	LockBackend string
}

// Configured reports whether the endpoint and credential are both present.
func (s Sigmax) Configured() bool {
	return strings.TrimSpace(s.ServerURL) != "" && strings.TrimSpace(s.AuthToken) != ""
}

// DatabaseConfig selects Postgres when URL is set; otherwise stores are in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional Redis connection used for distributed locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the push trigger when Brokers is non-empty.
type KafkaConfig struct {
	Brokers   []string
	PushTopic string
	Group     string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	LockBackendMemory   = "memory"
	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
)

// LoadDotEnv loads a .env file into the environment when one exists. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          getString("SIGNALS_ADDR", ":8080"),
			JWTSigningKey: getString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getString("JWT_ISSUER", "signals"),
			JWTAudience:   getString("JWT_AUDIENCE", "sigmax"),
			AuthDisabled:  getBool("AUTH_DISABLED", false),

			InboundRateLimit:  getInt("INBOUND_RATE_LIMIT", 600),
			InboundRateWindow: getDuration("INBOUND_RATE_WINDOW", time.Minute),
		},
		Sigmax: Sigmax{
			ServerURL:          os.Getenv("SIGMAX_SERVER"),
			AuthToken:          os.Getenv("SIGMAX_AUTH_TOKEN"),
			Timeout:            getDuration("SIGMAX_TIMEOUT", 10*time.Second),
			SendFailTimeout:    time.Duration(getInt("SIGMAX_SEND_FAIL_TIMEOUT_MINUTES", 15)) * time.Minute,
			SweepInterval:      getDuration("SIGMAX_SWEEP_INTERVAL", time.Minute),
			MaxRoundtrips:      getInt("SIGMAX_MAX_ROUNDTRIPS", 99),
			Timezone:           getString("SIGMAX_TIMEZONE", "Europe/Amsterdam"),
			Organisation:       getString("SIGMAX_ORGANISATION", "SIA"),
			Application:        getString("SIGMAX_APPLICATION", "SIA"),
			InsecureSkipVerify: getBool("SIGMAX_INSECURE_SKIP_VERIFY", false),
			BreakerThreshold:   getInt("SIGMAX_BREAKER_THRESHOLD", 5),
			BreakerCooldown:    getDuration("SIGMAX_BREAKER_COOLDOWN", 30*time.Second),
			LockBackend:        getString("SIGNAL_LOCK_BACKEND", LockBackendMemory),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(os.Getenv("KAFKA_BROKERS")),
			PushTopic: getString("KAFKA_PUSH_TOPIC", "signals.sigmax.push"),
			Group:     getString("KAFKA_GROUP", "signals-sigmax"),
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

// splitList splits a comma-separated value, dropping blanks and duplicates.
func splitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
