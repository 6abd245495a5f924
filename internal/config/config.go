// Package config loads the flat key->value configuration described in
// spec.md §6. Keys are expressed with dot notation (llm.provider,
// budget.hourly_limit, ...) and resolve to ARGUS_-prefixed environment
// variables (ARGUS_LLM_PROVIDER, ARGUS_BUDGET_HOURLY_LIMIT). No config
// library appears anywhere in the retrieval pack, so this mirrors the
// teacher's own getenv(key, fallback) shape rather than reaching for one.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LLM        LLMConfig
	Budget     BudgetConfig
	Collectors CollectorsConfig
	Server     ServerConfig
	CORS       CORSConfig
	Storage    StorageConfig
	Slack      SlackConfig
	Embedding  EmbeddingConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
	Ingest     IngestConfig
	Retention  RetentionConfig
	PublicURL  string
}

type LLMConfig struct {
	Provider string // openai | anthropic | gemini
	Model    string
	APIKey   string
}

type BudgetConfig struct {
	HourlyLimit int64
	DailyLimit  int64
}

type CollectorsConfig struct {
	MetricsIntervalSeconds int
	LogPaths               []string
}

type ServerConfig struct {
	Host string
	Port string
}

type CORSConfig struct {
	Origins []string
}

type StorageConfig struct {
	DataDir string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type EmbeddingConfig struct {
	APIKey string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// IngestConfig carries the shared x-argus-key for the ingestion endpoint. When
// empty, the endpoint is open and the caller-supplied key (if any) is used
// directly as the opaque tenant scope instead of an auth credential.
type IngestConfig struct {
	APIKey string
}

// RetentionConfig governs the periodic timeseries.Store.Purge sweep: rows
// older than Period are deleted every Interval.
type RetentionConfig struct {
	Period   time.Duration
	Interval time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	AllowSignup    string
	CookieSecure   string
	CookieSameSite string
	CookiePath     string
	CookieDomain   string
	AdminUsername  string
	AdminPassword  string
}

func Load() Config {
	return Config{
		LLM: LLMConfig{
			Provider: getenv("ARGUS_LLM_PROVIDER", "gemini"),
			Model:    getenv("ARGUS_LLM_MODEL", "gemini-2.0-flash"),
			APIKey:   os.Getenv("ARGUS_LLM_API_KEY"),
		},
		Budget: BudgetConfig{
			HourlyLimit: getenvInt64("ARGUS_BUDGET_HOURLY_LIMIT", 100000),
			DailyLimit:  getenvInt64("ARGUS_BUDGET_DAILY_LIMIT", 1000000),
		},
		Collectors: CollectorsConfig{
			MetricsIntervalSeconds: getenvInt("ARGUS_COLLECTORS_METRICS_INTERVAL_S", 15),
			LogPaths:               getenvList("ARGUS_COLLECTORS_LOG_PATHS", nil),
		},
		Server: ServerConfig{
			Host: getenv("ARGUS_SERVER_HOST", "0.0.0.0"),
			Port: getenv("ARGUS_SERVER_PORT", "8080"),
		},
		CORS: CORSConfig{
			Origins: getenvList("ARGUS_CORS_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			DataDir: getenv("ARGUS_STORAGE_DATA_DIR", "/var/lib/argus"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Embedding: EmbeddingConfig{
			APIKey: getenv("ARGUS_EMBEDDING_API_KEY", os.Getenv("ARGUS_LLM_API_KEY")),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "720h"),
			AllowSignup:    getenv("ALLOW_SIGNUP", "false"),
			CookieSecure:   getenv("AUTH_COOKIE_SECURE", "true"),
			CookieSameSite: getenv("AUTH_COOKIE_SAMESITE", "lax"),
			CookiePath:     getenv("AUTH_COOKIE_PATH", "/"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			AdminUsername:  os.Getenv("ADMIN_USERNAME"),
			AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		},
		Ingest: IngestConfig{
			APIKey: os.Getenv("ARGUS_INGEST_KEY"),
		},
		Retention: RetentionConfig{
			Period:   getenvDuration("ARGUS_RETENTION_PERIOD", 30*24*time.Hour),
			Interval: getenvDuration("ARGUS_RETENTION_SWEEP_INTERVAL", time.Hour),
		},
		PublicURL: os.Getenv("ARGUS_PUBLIC_URL"),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getenvInt64(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
