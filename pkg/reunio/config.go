package reunio

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/reunio/reunio/pkg/live"
)

type Config struct {
	Recording     RecordingConfig     `mapstructure:"recording"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Live          LiveConfig          `mapstructure:"live"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type RecordingConfig struct {
	WindowSeconds       int     `mapstructure:"window_seconds"`
	MinClipBytes        int     `mapstructure:"min_clip_bytes"`
	MinDurationSeconds  int     `mapstructure:"min_duration_seconds"`
	SoftLimitMinutes    int     `mapstructure:"soft_limit_minutes"`
	HardLimitMinutes    int     `mapstructure:"hard_limit_minutes"`
	QuotaPollSeconds    int     `mapstructure:"quota_poll_seconds"`
	SuggestTimeoutSec   int     `mapstructure:"suggest_timeout_seconds"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Capture    VendorConfig `mapstructure:"capture"`
	Transcribe VendorConfig `mapstructure:"transcribe"`
	Assist     VendorConfig `mapstructure:"assist"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	SupabaseURL   string `mapstructure:"supabase_url"`
	SupabaseKey   string `mapstructure:"supabase_key"`
	Bucket        string `mapstructure:"bucket"`
	SpoolDir      string `mapstructure:"spool_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type LiveConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ServerAddr     string   `mapstructure:"server_addr"`
	Path           string   `mapstructure:"path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c LiveConfig) hubConfig() live.Config {
	return live.Config{
		ServerAddr:     c.ServerAddr,
		Path:           c.Path,
		AllowAnyOrigin: c.AllowAnyOrigin,
		AllowedOrigins: c.AllowedOrigins,
	}
}

type ObservabilityConfig struct {
	Prometheus bool    `mapstructure:"prometheus"`
	EventsFile string  `mapstructure:"events_file"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("recording.window_seconds", 15)
	v.SetDefault("recording.min_clip_bytes", 1000)
	v.SetDefault("recording.min_duration_seconds", 60)
	v.SetDefault("recording.soft_limit_minutes", 120)
	v.SetDefault("recording.hard_limit_minutes", 240)
	v.SetDefault("recording.quota_poll_seconds", 5)
	v.SetDefault("recording.suggest_timeout_seconds", 30)
	v.SetDefault("recording.similarity_threshold", 0.8)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.bucket", "recordings")
	v.SetDefault("storage.retention_days", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl_seconds", 30)
	v.SetDefault("live.enabled", false)
	v.SetDefault("live.server_addr", ":8090")
	v.SetDefault("live.path", "/live")
	v.SetDefault("observability.prometheus", false)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Capture.Provider) == "" {
		return fmt.Errorf("vendors.capture.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Transcribe.Provider) == "" {
		return fmt.Errorf("vendors.transcribe.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Assist.Provider) == "" {
		return fmt.Errorf("vendors.assist.provider is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Provider)) {
	case "none", "":
	case "supabase":
		if strings.TrimSpace(c.Storage.SupabaseURL) == "" || strings.TrimSpace(c.Storage.SupabaseKey) == "" {
			return fmt.Errorf("storage.supabase_url and storage.supabase_key are required for the supabase provider")
		}
	case "spool":
		if strings.TrimSpace(c.Storage.SpoolDir) == "" {
			return fmt.Errorf("storage.spool_dir is required for the spool provider")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Capture.Settings = expandSettings(cfg.Vendors.Capture.Settings)
	cfg.Vendors.Transcribe.Settings = expandSettings(cfg.Vendors.Transcribe.Settings)
	cfg.Vendors.Assist.Settings = expandSettings(cfg.Vendors.Assist.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
