package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"

	DocsStatic = "static"
	DocsMongo  = "mongo"

	AssistantMock       = "mock"
	AssistantCompletion = "completion"
)

type Config struct {
	ServerPort     string
	JWTSecret      string
	SessionTTL     time.Duration
	CORSOrigins    []string
	HistoryBackend string
	DocsBackend    string
	Postgres       PostgresConfig
	Mongo          MongoConfig
	Redis          RedisConfig
	Logging        LoggingConfig
	Assistant      AssistantConfig
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig is optional; an empty Addr disables the document cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DocsTTL  time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

type AssistantConfig struct {
	Mode            string
	PrimaryEndpoint string
	BackupEndpoint  string
	ActiveEndpoint  string
	APIKey          string
	Model           string
	SystemPrompt    string
	MockReply       string
	RequestsPerSec  float64
	Burst           int
	Timeout         time.Duration
}

func (a AssistantConfig) BaseURL() string {
	if strings.TrimSpace(a.ActiveEndpoint) != "" {
		return strings.TrimRight(a.ActiveEndpoint, "/")
	}
	return strings.TrimRight(a.PrimaryEndpoint, "/")
}

// LoadEnvFiles loads .env and config/.env when present. Missing files are
// ignored so that variables can be supplied externally.
func LoadEnvFiles() error {
	for _, path := range []string{".env", "config/.env"} {
		if err := godotenv.Load(path); err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func LoadConfig() (*Config, error) {
	port := envOrDefault("PORT", "8001")
	jwtSecret := envOrDefault("JWT_SECRET", "dev-secret")

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5433"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)
	redisDB, _ := strconv.Atoi(envOrDefault("REDIS_DB", "0"))

	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "docchat-server"),
	}

	primaryEndpoint := envOrDefault("QINIU_PRIMARY_ENDPOINT", "https://openai.qiniu.com/v1")
	backupEndpoint := envOrDefault("QINIU_BACKUP_ENDPOINT", "https://api.qnaigc.com/v1")

	cfg := &Config{
		ServerPort:     port,
		JWTSecret:      jwtSecret,
		SessionTTL:     parseDuration(envOrDefault("SESSION_TTL", "24h"), 24*time.Hour),
		CORSOrigins:    splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3000")),
		HistoryBackend: strings.ToLower(envOrDefault("HISTORY_BACKEND", HistoryMemory)),
		DocsBackend:    strings.ToLower(envOrDefault("DOCS_BACKEND", DocsStatic)),
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          envOrDefault("POSTGRES_PASSWORD", "postgres"),
			Database:          envOrDefault("POSTGRES_DB", "docchat"),
			MaxConns:          maxConns,
			MinConns:          minConns,
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "docchat"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			DocsTTL:  parseDuration(envOrDefault("DOCS_CACHE_TTL", "5m"), 5*time.Minute),
		},
		Logging: logging,
		Assistant: AssistantConfig{
			Mode:            strings.ToLower(envOrDefault("ASSISTANT_MODE", AssistantMock)),
			PrimaryEndpoint: primaryEndpoint,
			BackupEndpoint:  backupEndpoint,
			ActiveEndpoint:  envOrDefault("QINIU_API_ENDPOINT", primaryEndpoint),
			APIKey:          os.Getenv("QINIU_API_KEY"),
			Model:           envOrDefault("ASSISTANT_MODEL", "doubao-1.5-vision-pro"),
			SystemPrompt:    os.Getenv("ASSISTANT_SYSTEM_PROMPT"),
			MockReply:       os.Getenv("ASSISTANT_MOCK_REPLY"),
			RequestsPerSec:  parseFloat(envOrDefault("ASSISTANT_RPS", "2"), 2),
			Burst:           int(parseInt32(envOrDefault("ASSISTANT_BURST", "4"), 4)),
			Timeout:         parseDuration(envOrDefault("ASSISTANT_TIMEOUT", "20s"), 20*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.HistoryBackend {
	case HistoryMemory, HistoryPostgres:
	default:
		return fmt.Errorf("config: unsupported HISTORY_BACKEND %q", c.HistoryBackend)
	}

	switch c.DocsBackend {
	case DocsStatic, DocsMongo:
	default:
		return fmt.Errorf("config: unsupported DOCS_BACKEND %q", c.DocsBackend)
	}

	switch c.Assistant.Mode {
	case AssistantMock:
	case AssistantCompletion:
		if strings.TrimSpace(c.Assistant.APIKey) == "" {
			return fmt.Errorf("config: QINIU_API_KEY is required when ASSISTANT_MODE=%s", AssistantCompletion)
		}
	default:
		return fmt.Errorf("config: unsupported ASSISTANT_MODE %q", c.Assistant.Mode)
	}

	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
