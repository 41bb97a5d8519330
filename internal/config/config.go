package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Data      DataConfig
	Query     QueryConfig
	Cache     CacheConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host            string        `validate:"required"`
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	IdleTimeout     time.Duration `validate:"gte=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver          string        `validate:"oneof=sqlite postgres"`
	DSN             string        `validate:"required"`
	MaxOpenConns    int           `validate:"gte=0"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
	QueryTimeout    time.Duration `validate:"gt=0"`
	SlowThreshold   time.Duration `validate:"gte=0"`
	LogLevel        string        `validate:"oneof=silent error warn info"`
}

// DataConfig controls where records come from and what happens when they
// cannot be loaded at startup.
type DataConfig struct {
	Source      string
	LoadOnStart bool
	OnLoadError string        `validate:"oneof=fail empty"`
	LoadTimeout time.Duration `validate:"gt=0"`
	BatchSize   int           `validate:"gt=0"`
	Workers     int           `validate:"gt=0"`
	S3          S3Config
}

// S3Config is used when the data source is an s3:// URL. Empty credentials
// fall back to the SDK's default chain.
type S3Config struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type QueryConfig struct {
	MaxPageSize int `validate:"gt=0"`
}

type CacheConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int           `validate:"gte=0"`
	TTL         time.Duration `validate:"gte=0"`
	Prefix      string
	DialTimeout time.Duration `validate:"gte=0"`
}

type LoggerConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int `validate:"gt=0"`
	RateLimitBurst  int `validate:"gt=0"`
	AllowedOrigins  []string
	TrustedProxies  []string
}

type TelemetryConfig struct {
	TracingEnabled bool
	ServiceName    string  `validate:"required"`
	SampleRatio    float64 `validate:"gte=0,lte=1"`
	DBTracing      bool
	MetricsEnabled bool
}

const (
	OnLoadErrorFail  = "fail"
	OnLoadErrorEmpty = "empty"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:sales.db?_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("data.source", "data.csv")
	v.SetDefault("data.load_on_start", true)
	v.SetDefault("data.on_load_error", OnLoadErrorEmpty)
	v.SetDefault("data.load_timeout", 2*time.Minute)
	v.SetDefault("data.batch_size", 1000)
	v.SetDefault("data.workers", 4)
	v.SetDefault("data.s3.region", "us-east-1")
	v.SetDefault("data.s3.endpoint", "")
	v.SetDefault("data.s3.access_key", "")
	v.SetDefault("data.s3.secret_key", "")
	v.SetDefault("data.s3.use_path_style", false)

	v.SetDefault("query.max_page_size", 500)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.prefix", "sales:page:")
	v.SetDefault("cache.dial_timeout", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.allowed_origins", []string{"http://localhost:8084"})
	v.SetDefault("security.trusted_proxies", []string{"127.0.0.1"})

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "sales-dashboard")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.db_tracing", false)
	v.SetDefault("telemetry.metrics_enabled", true)
}

// Load reads configuration from defaults, then the optional file at path,
// then environment variables. Keys map to variables by upper-casing and
// replacing dots, so server.port is SERVER_PORT and log.level is LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// CSV_FILE is the older name for DATA_SOURCE.
	if err := v.BindEnv("data.source", "DATA_SOURCE", "CSV_FILE"); err != nil {
		return nil, fmt.Errorf("binding data source env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			QueryTimeout:    v.GetDuration("database.query_timeout"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			LogLevel:        strings.ToLower(v.GetString("database.log_level")),
		},
		Data: DataConfig{
			Source:      v.GetString("data.source"),
			LoadOnStart: v.GetBool("data.load_on_start"),
			OnLoadError: strings.ToLower(v.GetString("data.on_load_error")),
			LoadTimeout: v.GetDuration("data.load_timeout"),
			BatchSize:   v.GetInt("data.batch_size"),
			Workers:     v.GetInt("data.workers"),
			S3: S3Config{
				Region:       v.GetString("data.s3.region"),
				Endpoint:     v.GetString("data.s3.endpoint"),
				AccessKey:    v.GetString("data.s3.access_key"),
				SecretKey:    v.GetString("data.s3.secret_key"),
				UsePathStyle: v.GetBool("data.s3.use_path_style"),
			},
		},
		Query: QueryConfig{
			MaxPageSize: v.GetInt("query.max_page_size"),
		},
		Cache: CacheConfig{
			Enabled:     v.GetBool("cache.enabled"),
			Addr:        v.GetString("cache.addr"),
			Password:    v.GetString("cache.password"),
			DB:          v.GetInt("cache.db"),
			TTL:         v.GetDuration("cache.ttl"),
			Prefix:      v.GetString("cache.prefix"),
			DialTimeout: v.GetDuration("cache.dial_timeout"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Security: SecurityConfig{
			EnableRateLimit: v.GetBool("security.rate_limit_enabled"),
			RateLimitRPS:    v.GetInt("security.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("security.rate_limit_burst"),
			AllowedOrigins:  getStringSlice(v, "security.allowed_origins"),
			TrustedProxies:  getStringSlice(v, "security.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: v.GetBool("telemetry.tracing_enabled"),
			ServiceName:    v.GetString("telemetry.service_name"),
			SampleRatio:    v.GetFloat64("telemetry.sample_ratio"),
			DBTracing:      v.GetBool("telemetry.db_tracing"),
			MetricsEnabled: v.GetBool("telemetry.metrics_enabled"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if (c.Data.S3.AccessKey == "") != (c.Data.S3.SecretKey == "") {
		return fmt.Errorf("s3 access key and secret key must be set together")
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache address cannot be empty when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache ttl must be positive when the cache is enabled")
		}
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		return fmt.Errorf("database max idle conns (%d) cannot exceed max open conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	return nil
}

// ValidateServe adds the checks that only matter when the HTTP server starts.
// Commands that take their own source (import) skip it.
func (c *Config) ValidateServe() error {
	if c.Data.LoadOnStart && c.Data.Source == "" {
		return fmt.Errorf("data source cannot be empty when load_on_start is set")
	}
	return nil
}

// getStringSlice accepts both list values from a config file and the
// comma-separated form used in environment variables.
func getStringSlice(v *viper.Viper, key string) []string {
	switch raw := v.Get(key).(type) {
	case string:
		var out []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return v.GetStringSlice(key)
	}
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
