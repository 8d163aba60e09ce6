// Package config provides configuration management for the Amethyst CDN server.
// Configuration can be loaded from YAML files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	MultipartMemory int64         `mapstructure:"multipart_memory"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PortalConfig holds settings for the public face of the service.
type PortalConfig struct {
	// Domain is the public host used to build absolute links in responses.
	// Links stay relative when empty.
	Domain string `mapstructure:"domain"`

	// Production switches logging to JSON and hides debug output.
	Production bool `mapstructure:"production"`

	// EscapeAllHTML escapes every markup character in rendered text views
	// instead of only the first occurrence of each.
	EscapeAllHTML bool `mapstructure:"escape_all_html"`
}

// URL returns path prefixed with the portal domain when one is configured.
func (c PortalConfig) URL(path string) string {
	if c.Domain == "" {
		return path
	}
	return "https://" + strings.TrimSuffix(c.Domain, "/") + path
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`
	JournalMode     string `mapstructure:"journal_mode"`
	BusyTimeout     int    `mapstructure:"busy_timeout"`
	CacheSize       int    `mapstructure:"cache_size"`
	SynchronousMode string `mapstructure:"synchronous_mode"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrationURL returns the golang-migrate URL for the PostgreSQL database.
func (c DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings.
// Redis is optional; when disabled the cache and sweep locks stay in-process.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds content storage backend settings.
type StorageConfig struct {
	// Backend is "filesystem" or "s3".
	Backend string          `mapstructure:"backend"`
	DataDir string          `mapstructure:"data_dir"`
	S3      S3StorageConfig `mapstructure:"s3"`
}

// S3StorageConfig holds S3 backend settings.
type S3StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// CacheConfig holds content index cache settings.
type CacheConfig struct {
	// Size is the maximum number of entries kept by the in-process cache.
	Size int `mapstructure:"size"`

	// TTL is how long a cached index entry stays valid.
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`

	// Rotation settings, used when Output is a file path.
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled turns the per-IP request policies on.
	Enabled bool `mapstructure:"enabled"`

	// BytesPerSecond is the aggregate egress ceiling shared by all downloads.
	// Zero or negative disables bandwidth throttling.
	BytesPerSecond int64 `mapstructure:"bytes_per_second"`

	// ChunkSize is the number of bytes a stream sends per throttle wait.
	ChunkSize int `mapstructure:"chunk_size"`
}

// LifecycleConfig holds the expiry and purge sweep settings.
type LifecycleConfig struct {
	// Enabled determines if the sweeps run automatically.
	Enabled bool `mapstructure:"enabled"`

	// ExpireInterval is how often expired content is removed.
	ExpireInterval time.Duration `mapstructure:"expire_interval"`

	// PurgeInterval is how often index entries are checked against storage.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`

	// BatchSize is the number of index entries read per query.
	BatchSize int `mapstructure:"batch_size"`
}

// IdentityConfig bounds the identifier generators.
type IdentityConfig struct {
	// NamespaceAttempts is the number of namespace ids tried before giving up.
	NamespaceAttempts int `mapstructure:"namespace_attempts"`

	// ContentAttempts is the number of content ids tried before giving up.
	ContentAttempts int `mapstructure:"content_attempts"`
}

// CORSConfig holds cross-origin settings. CORS is off when no origin is listed.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// legacyEnv maps environment variables of the original deployment onto config keys.
var legacyEnv = map[string]string{
	"server.port":       "PORTAL_PORT",
	"server.host":       "BIND_ADDRESS",
	"portal.domain":     "PORTAL_TLD",
	"portal.production": "PRODUCTION_MODE",
}

// LoadEnvFile loads variables from a dotenv file into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading env file %q: %w", path, err)
	}
	return nil
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with CDN_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CDN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envKey := "CDN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/amethyst-cdn")
	}

	// Config file is optional, environment variables can carry everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 5*time.Minute)
	v.SetDefault("server.write_timeout", 0) // streams are long-lived and throttled
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 2*1024*1024*1024) // 2GiB
	v.SetDefault("server.multipart_memory", 32*1024*1024)

	// Portal defaults
	v.SetDefault("portal.domain", "")
	v.SetDefault("portal.production", false)
	v.SetDefault("portal.escape_all_html", false)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cdn")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "cdn")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.path", "./data/cdn.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.key_prefix", "cdn:")

	// Storage defaults
	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "namespace")
	v.SetDefault("storage.s3.use_path_style", true)

	// Cache defaults
	v.SetDefault("cache.size", 4096)
	v.SetDefault("cache.ttl", 30*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.bytes_per_second", 104857600) // 100 MiB/s
	v.SetDefault("rate_limit.chunk_size", 64*1024)

	// Lifecycle defaults
	v.SetDefault("lifecycle.enabled", true)
	v.SetDefault("lifecycle.expire_interval", 15*time.Second)
	v.SetDefault("lifecycle.purge_interval", 5*time.Minute)
	v.SetDefault("lifecycle.batch_size", 500)

	// Identity defaults
	v.SetDefault("identity.namespace_attempts", 8)
	v.SetDefault("identity.content_attempts", 8)

	v.SetDefault("cors.allowed_origins", []string{})
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite driver")
	}

	switch c.Storage.Backend {
	case "filesystem":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for filesystem backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be 'filesystem' or 's3'")
	}

	if c.Lifecycle.Enabled {
		if c.Lifecycle.ExpireInterval <= 0 || c.Lifecycle.PurgeInterval <= 0 {
			return fmt.Errorf("lifecycle intervals must be positive")
		}
	}
	if c.Lifecycle.BatchSize < 1 {
		return fmt.Errorf("lifecycle.batch_size must be at least 1")
	}

	if c.Identity.NamespaceAttempts < 1 || c.Identity.ContentAttempts < 1 {
		return fmt.Errorf("identity attempts must be at least 1")
	}

	if c.RateLimit.ChunkSize < 1 {
		return fmt.Errorf("rate_limit.chunk_size must be at least 1")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
