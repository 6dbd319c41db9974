// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	BaseURL        string `mapstructure:"BASE_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AdminEmails    string `mapstructure:"ADMIN_EMAILS"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBReadHost               string `mapstructure:"DB_READ_HOST"`
	DBReadPort               string `mapstructure:"DB_READ_PORT"`
	DBReadUser               string `mapstructure:"DB_READ_USER"`
	DBReadPassword           string `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	DBAutoMigrateAllowDestructive bool `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	RequireActivation bool `mapstructure:"REQUIRE_ACTIVATION"`

	PushProvider       string  `mapstructure:"PUSH_PROVIDER"`
	FCMProjectID       string  `mapstructure:"FCM_PROJECT_ID"`
	FCMCredentialsFile string  `mapstructure:"FCM_CREDENTIALS_FILE"`
	PushWorkers        int     `mapstructure:"PUSH_WORKERS"`
	PushQueueSize      int     `mapstructure:"PUSH_QUEUE_SIZE"`
	PushRatePerSec     float64 `mapstructure:"PUSH_RATE_PER_SEC"`
	PushBurst          int     `mapstructure:"PUSH_BURST"`
	PushTimeoutSeconds int     `mapstructure:"PUSH_TIMEOUT_SECONDS"`

	AttachmentDir         string `mapstructure:"ATTACHMENT_DIR"`
	AttachmentMaxUploadMB int    `mapstructure:"ATTACHMENT_MAX_UPLOAD_MB"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("BASE_URL", "http://localhost:8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "push_notifications=on")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ADMIN_EMAILS", "")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "huddle")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REQUIRE_ACTIVATION", false)

	viper.SetDefault("PUSH_PROVIDER", "log")
	viper.SetDefault("FCM_PROJECT_ID", "")
	viper.SetDefault("FCM_CREDENTIALS_FILE", "")
	viper.SetDefault("PUSH_WORKERS", 4)
	viper.SetDefault("PUSH_QUEUE_SIZE", 1024)
	viper.SetDefault("PUSH_RATE_PER_SEC", 50.0)
	viper.SetDefault("PUSH_BURST", 10)
	viper.SetDefault("PUSH_TIMEOUT_SECONDS", 10)

	viper.SetDefault("ATTACHMENT_DIR", "/tmp/huddle/attachments")
	viper.SetDefault("ATTACHMENT_MAX_UPLOAD_MB", 10)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.PushProvider = strings.ToLower(strings.TrimSpace(c.PushProvider))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
}

// AdminEmailList returns the lowercased addresses that are promoted to admin at boot.
func (c *Config) AdminEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.AdminEmails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AttachmentMaxUploadMB <= 0 {
		return errors.New("ATTACHMENT_MAX_UPLOAD_MB must be positive")
	}

	switch c.PushProvider {
	case "", "log":
	case "fcm":
		if c.FCMProjectID == "" || c.FCMCredentialsFile == "" {
			return errors.New("FCM_PROJECT_ID and FCM_CREDENTIALS_FILE are required when PUSH_PROVIDER=fcm")
		}
	default:
		return fmt.Errorf("unsupported PUSH_PROVIDER %q", c.PushProvider)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
