package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Storage    StorageConfig
	Registry   RegistryConfig
	Generation GenerationConfig
	Media      MediaConfig
	Frames     FramesConfig
	R2         R2Config
	Zitadel    ZitadelConfig
	Gateway    GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	GeneratePerHour int
	RenderPerHour   int
	UploadPerHour   int
	EditPerMin      int
}

// Storage drivers
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
}

type RegistryConfig struct {
	File             string
	DefaultModel     string
	PreviewModel     string
	QualityTolerance int
}

type GenerationConfig struct {
	BaseURL            string
	APIKey             string
	PollInterval       time.Duration
	Timeout            time.Duration
	SegmentTimeout     time.Duration
	PreviewConcurrency int
}

type MediaConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type FramesConfig struct {
	FFmpegPath  string
	FFprobePath string
	OffsetSec   float64
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("DATABASE_URL")
	readSecret("GENERATION_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("ratelimit.render_per_hour", "RATELIMIT_RENDER_PER_HOUR")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = v.BindEnv("ratelimit.edit_per_min", "RATELIMIT_EDIT_PER_MIN")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.database_url", "DATABASE_URL")
	_ = v.BindEnv("storage.max_conns", "DATABASE_MAX_CONNS")
	_ = v.BindEnv("registry.file", "REGISTRY_FILE")
	_ = v.BindEnv("registry.default_model", "REGISTRY_DEFAULT_MODEL")
	_ = v.BindEnv("registry.preview_model", "REGISTRY_PREVIEW_MODEL")
	_ = v.BindEnv("registry.quality_tolerance", "REGISTRY_QUALITY_TOLERANCE")
	_ = v.BindEnv("generation.base_url", "GENERATION_BASE_URL")
	_ = v.BindEnv("generation.api_key", "GENERATION_API_KEY")
	_ = v.BindEnv("generation.poll_interval", "GENERATION_POLL_INTERVAL")
	_ = v.BindEnv("generation.timeout", "GENERATION_TIMEOUT")
	_ = v.BindEnv("generation.segment_timeout", "GENERATION_SEGMENT_TIMEOUT")
	_ = v.BindEnv("generation.preview_concurrency", "GENERATION_PREVIEW_CONCURRENCY")
	_ = v.BindEnv("media.service_url", "MEDIA_SERVICE_URL")
	_ = v.BindEnv("media.timeout", "MEDIA_SERVICE_TIMEOUT")
	_ = v.BindEnv("frames.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("frames.ffprobe_path", "FFPROBE_PATH")
	_ = v.BindEnv("frames.offset_sec", "FRAME_OFFSET_SEC")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.generate_per_hour", 10)
	v.SetDefault("ratelimit.render_per_hour", 5)
	v.SetDefault("ratelimit.upload_per_hour", 50)
	v.SetDefault("ratelimit.edit_per_min", 120)

	// Storage defaults
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.max_conns", 10)

	// Registry defaults
	v.SetDefault("registry.quality_tolerance", 10)

	// Generation backend defaults
	v.SetDefault("generation.poll_interval", "5s")
	v.SetDefault("generation.timeout", "30s")
	v.SetDefault("generation.segment_timeout", "10m")
	v.SetDefault("generation.preview_concurrency", 1)

	// Media service defaults
	v.SetDefault("media.service_url", "http://localhost:8084")
	v.SetDefault("media.timeout", 120)

	// Frame extraction defaults
	v.SetDefault("frames.ffmpeg_path", "ffmpeg")
	v.SetDefault("frames.ffprobe_path", "ffprobe")
	v.SetDefault("frames.offset_sec", 0.1)

	v.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
			RenderPerHour:   v.GetInt("ratelimit.render_per_hour"),
			UploadPerHour:   v.GetInt("ratelimit.upload_per_hour"),
			EditPerMin:      v.GetInt("ratelimit.edit_per_min"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(v.GetString("storage.driver")),
			DatabaseURL: v.GetString("storage.database_url"),
			MaxConns:    v.GetInt32("storage.max_conns"),
		},
		Registry: RegistryConfig{
			File:             v.GetString("registry.file"),
			DefaultModel:     v.GetString("registry.default_model"),
			PreviewModel:     v.GetString("registry.preview_model"),
			QualityTolerance: v.GetInt("registry.quality_tolerance"),
		},
		Generation: GenerationConfig{
			BaseURL:            v.GetString("generation.base_url"),
			APIKey:             v.GetString("generation.api_key"),
			PollInterval:       v.GetDuration("generation.poll_interval"),
			Timeout:            v.GetDuration("generation.timeout"),
			SegmentTimeout:     v.GetDuration("generation.segment_timeout"),
			PreviewConcurrency: v.GetInt("generation.preview_concurrency"),
		},
		Media: MediaConfig{
			ServiceURL: v.GetString("media.service_url"),
			Timeout:    v.GetInt("media.timeout"),
		},
		Frames: FramesConfig{
			FFmpegPath:  v.GetString("frames.ffmpeg_path"),
			FFprobePath: v.GetString("frames.ffprobe_path"),
			OffsetSec:   v.GetFloat64("frames.offset_sec"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage driver %q requires DATABASE_URL", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Generation.SegmentTimeout <= 0 {
		return fmt.Errorf("generation segment timeout must be positive, got %s", c.Generation.SegmentTimeout)
	}
	if c.Generation.PollInterval <= 0 {
		return fmt.Errorf("generation poll interval must be positive, got %s", c.Generation.PollInterval)
	}
	if c.Generation.PreviewConcurrency < 1 {
		return fmt.Errorf("preview concurrency must be at least 1, got %d", c.Generation.PreviewConcurrency)
	}
	if c.Registry.QualityTolerance < 0 {
		return fmt.Errorf("quality tolerance must not be negative, got %d", c.Registry.QualityTolerance)
	}
	if c.Frames.OffsetSec < 0 {
		return fmt.Errorf("frame offset must not be negative, got %v", c.Frames.OffsetSec)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
