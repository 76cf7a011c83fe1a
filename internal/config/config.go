package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Providers ProvidersConfig
	Retriever RetrieverConfig
	Jobs      JobsConfig
	Archive   ArchiveConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr     string
	RateLimitDur time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ProvidersConfig holds per-provider credentials and settings. A provider
// with empty credentials registers but reports itself inactive.
type ProvidersConfig struct {
	LCSC       LCSCConfig
	Mouser     MouserConfig
	DigiKey    DigiKeyConfig
	TME        TMEConfig
	Element14  Element14Config
	Reichelt   ReicheltConfig
	Pollin     PollinConfig
	GenericWeb GenericWebConfig
}

type LCSCConfig struct {
	Enabled  bool
	Currency string
}

type MouserConfig struct {
	APIKey      string
	SearchLimit int
}

type DigiKeyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Currency     string
	SiteLocale   string
}

type TMEConfig struct {
	Token    string
	Secret   string
	Country  string
	Language string
	Currency string
}

type Element14Config struct {
	APIKey      string
	StoreDomain string
}

type ReicheltConfig struct {
	Enabled  bool
	Country  string
	Language string
	Currency string
}

type PollinConfig struct {
	Enabled bool
}

type GenericWebConfig struct {
	Enabled bool
}

// RetrieverConfig holds search and detail-cache settings
type RetrieverConfig struct {
	DetailTTL   time.Duration
	CallTimeout time.Duration
}

// JobsConfig holds the bulk-import worker settings
type JobsConfig struct {
	MaxConcurrent int
	PollInterval  time.Duration
}

// ArchiveConfig holds S3 datasheet archiving settings. Archiving is
// disabled when the bucket is empty.
type ArchiveConfig struct {
	Bucket    string
	Prefix    string
	AWSRegion string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	cfg := &Config{}

	// Define flags with defaults
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	cacheTTL := flag.Duration("cache-ttl", 4*time.Hour, "Cache TTL for part details")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same provider")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "partscout", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")

	flag.Parse()

	// Apply environment variable overrides
	applyEnvOverrides(httpAddr, cacheTTL, cacheBackend, redisAddr, rateLimitDur, logLevel, dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	cfg.Server = ServerConfig{
		HTTPAddr:     *httpAddr,
		RateLimitDur: *rateLimitDur,
	}

	cfg.Cache = CacheConfig{
		Backend:   *cacheBackend,
		TTL:       *cacheTTL,
		RedisAddr: *redisAddr,
	}

	cfg.Database = DatabaseConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level: *logLevel,
	}

	cfg.Providers = loadProvidersConfig()
	cfg.Retriever = loadRetrieverConfig(*cacheTTL)
	cfg.Jobs = loadJobsConfig()
	cfg.Archive = loadArchiveConfig()

	return cfg
}

func loadProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		LCSC: LCSCConfig{
			Enabled:  envBool("LCSC_ENABLED", true),
			Currency: os.Getenv("LCSC_CURRENCY"),
		},
		Mouser: MouserConfig{
			APIKey:      os.Getenv("MOUSER_API_KEY"),
			SearchLimit: envInt("MOUSER_SEARCH_LIMIT", 0),
		},
		DigiKey: DigiKeyConfig{
			ClientID:     os.Getenv("DIGIKEY_CLIENT_ID"),
			ClientSecret: os.Getenv("DIGIKEY_CLIENT_SECRET"),
			TokenURL:     getEnvOrDefault("DIGIKEY_TOKEN_URL", "https://api.digikey.com/v1/oauth2/token"),
			Currency:     os.Getenv("DIGIKEY_CURRENCY"),
			SiteLocale:   os.Getenv("DIGIKEY_SITE_LOCALE"),
		},
		TME: TMEConfig{
			Token:    os.Getenv("TME_TOKEN"),
			Secret:   os.Getenv("TME_SECRET"),
			Country:  os.Getenv("TME_COUNTRY"),
			Language: os.Getenv("TME_LANGUAGE"),
			Currency: os.Getenv("TME_CURRENCY"),
		},
		Element14: Element14Config{
			APIKey:      os.Getenv("ELEMENT14_API_KEY"),
			StoreDomain: os.Getenv("ELEMENT14_STORE_DOMAIN"),
		},
		Reichelt: ReicheltConfig{
			Enabled:  envBool("REICHELT_ENABLED", false),
			Country:  os.Getenv("REICHELT_COUNTRY"),
			Language: os.Getenv("REICHELT_LANGUAGE"),
			Currency: os.Getenv("REICHELT_CURRENCY"),
		},
		Pollin: PollinConfig{
			Enabled: envBool("POLLIN_ENABLED", false),
		},
		GenericWeb: GenericWebConfig{
			Enabled: envBool("GENERICWEB_ENABLED", false),
		},
	}
}

func loadRetrieverConfig(cacheTTL time.Duration) RetrieverConfig {
	detailTTL := cacheTTL
	if v := os.Getenv("DETAIL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			detailTTL = d
		}
	}

	callTimeout := 30 * time.Second
	if v := os.Getenv("PROVIDER_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			callTimeout = d
		}
	}

	return RetrieverConfig{
		DetailTTL:   detailTTL,
		CallTimeout: callTimeout,
	}
}

func loadJobsConfig() JobsConfig {
	maxConcurrent := 2
	if v := os.Getenv("JOBS_MAX_CONCURRENT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxConcurrent = parsed
		}
	}

	pollInterval := 2 * time.Second
	if v := os.Getenv("JOBS_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			pollInterval = d
		}
	}

	return JobsConfig{
		MaxConcurrent: maxConcurrent,
		PollInterval:  pollInterval,
	}
}

func loadArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Bucket:    os.Getenv("ARCHIVE_S3_BUCKET"),
		Prefix:    getEnvOrDefault("ARCHIVE_S3_PREFIX", "datasheets"),
		AWSRegion: os.Getenv("AWS_REGION"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envBool(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func applyEnvOverrides(
	httpAddr *string,
	cacheTTL *time.Duration,
	cacheBackend *string,
	redisAddr *string,
	rateLimitDur *time.Duration,
	logLevel *string,
	dbHost *string,
	dbPort *int,
	dbUser *string,
	dbPassword *string,
	dbName *string,
	dbSSLMode *string,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*rateLimitDur = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
}
