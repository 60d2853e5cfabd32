package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/repochat/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	BlobStore   BlobStoreConfig   `koanf:"blobstore"`
	Retry       RetryConfig       `koanf:"retry"`
	Cache       CacheConfig       `koanf:"cache"`
	Chat        ChatConfig        `koanf:"chat"`
	Social      SocialConfig      `koanf:"social"`
	Logger      LoggerConfig      `koanf:"logger"`
	Tracing     TracingConfig     `koanf:"tracing"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type BlobStoreConfig struct {
	// Driver is "http" or "memory".
	Driver    string        `koanf:"driver"`
	BaseURL   string        `koanf:"base_url"`
	Container string        `koanf:"container"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	Committer string        `koanf:"committer"`
}

type RetryConfig struct {
	MaxAttempts uint          `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver         string        `koanf:"driver"`
	SchemaVersion  int           `koanf:"schema_version"`
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	KeyPrefix      string        `koanf:"key_prefix"`
	MessagesMaxAge time.Duration `koanf:"messages_max_age"`
	RoomsMaxAge    time.Duration `koanf:"rooms_max_age"`
	ContactsMaxAge time.Duration `koanf:"contacts_max_age"`
	RequestsMaxAge time.Duration `koanf:"requests_max_age"`
}

type ChatConfig struct {
	MessageLogCapacity int `koanf:"message_log_capacity"`
}

type SocialConfig struct {
	SystemNotices bool `koanf:"system_notices"`
}

type LoggerConfig struct {
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
	FilePath string `koanf:"file_path"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"`
	Endpoint    string `koanf:"endpoint"`
	Environment string `koanf:"environment"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.BlobStore.Driver {
	case "memory":
	case "http":
		if c.BlobStore.BaseURL == "" {
			return fmt.Errorf("blobstore.base_url is required for the http driver")
		}
	default:
		return fmt.Errorf("unknown blobstore.driver %q", c.BlobStore.Driver)
	}

	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}

	if c.Retry.MaxAttempts == 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	return nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})

	setDefault(k, "rateLimiter.requestsPerTimeFrame", 60)
	setDefault(k, "rateLimiter.timeFrame", time.Minute)

	setDefault(k, "blobstore.driver", "memory")
	setDefault(k, "blobstore.container", "visper-data")
	setDefault(k, "blobstore.timeout", 15*time.Second)
	setDefault(k, "blobstore.committer", "visper")

	setDefault(k, "retry.max_attempts", 3)
	setDefault(k, "retry.base_delay", time.Second)

	setDefault(k, "cache.driver", "memory")
	setDefault(k, "cache.schema_version", 1)
	setDefault(k, "cache.redis_addr", "localhost:6379")
	setDefault(k, "cache.key_prefix", "visper:cache")
	setDefault(k, "cache.messages_max_age", 30*time.Second)
	setDefault(k, "cache.rooms_max_age", 2*time.Minute)
	setDefault(k, "cache.contacts_max_age", 5*time.Minute)
	setDefault(k, "cache.requests_max_age", 30*time.Second)

	setDefault(k, "chat.message_log_capacity", 500)
	setDefault(k, "social.system_notices", true)

	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.encoding", "json")

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.exporter", "otlp")
	setDefault(k, "tracing.endpoint", "http://jaeger:4318/v1/traces")
	setDefault(k, "tracing.environment", "development")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}

	if driver := env.GetString("BLOBSTORE_DRIVER", ""); driver != "" {
		k.Set("blobstore.driver", driver)
	}
	if baseURL := env.GetString("BLOBSTORE_BASE_URL", ""); baseURL != "" {
		k.Set("blobstore.base_url", baseURL)
	}
	if container := env.GetString("BLOBSTORE_CONTAINER", ""); container != "" {
		k.Set("blobstore.container", container)
	}
	if token := env.GetString("BLOBSTORE_TOKEN", ""); token != "" {
		k.Set("blobstore.token", token)
	}

	if attempts := env.GetInt("RETRY_MAX_ATTEMPTS", 0); attempts > 0 {
		k.Set("retry.max_attempts", attempts)
	}
	if delay := env.GetDuration("RETRY_BASE_DELAY", 0); delay > 0 {
		k.Set("retry.base_delay", delay)
	}

	if driver := env.GetString("CACHE_DRIVER", ""); driver != "" {
		k.Set("cache.driver", driver)
	}
	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		k.Set("cache.redis_addr", addr)
	}
	if password := env.GetString("REDIS_PASSWORD", ""); password != "" {
		k.Set("cache.redis_password", password)
	}

	k.Set("social.system_notices", env.GetBool("SYSTEM_NOTICES", k.Bool("social.system_notices")))

	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}

	if endpoint := env.GetString("JAEGER_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
		k.Set("tracing.enabled", true)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
