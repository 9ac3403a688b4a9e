package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix scopes environment overrides, e.g. WORKFLOW_GATE_SERVER_PORT
const EnvPrefix = "WORKFLOW_GATE"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Authz     AuthzConfig     `mapstructure:"authz"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Instances InstancesConfig `mapstructure:"instances"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded migrations
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	DevActorHeader string `mapstructure:"dev_actor_header"` // non-empty enables header identity
}

// AuthzConfig tunes condition evaluation
type AuthzConfig struct {
	BusinessHoursTimezone string `mapstructure:"business_hours_timezone"`
	BusinessHoursStart    string `mapstructure:"business_hours_start"`
	BusinessHoursEnd      string `mapstructure:"business_hours_end"`
}

// LarkConfig holds Lark alerting configuration
type LarkConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	AppID       string        `mapstructure:"app_id"`
	AppSecret   string        `mapstructure:"app_secret"`
	AlertChatID string        `mapstructure:"alert_chat_id"`
	APITimeout  time.Duration `mapstructure:"api_timeout"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// InstancesConfig bounds instance listings
type InstancesConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// Load reads the configuration and validates every section
func Load(configPath string) (*Config, error) {
	cfg, err := Read(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read loads the YAML file at configPath, then applies environment overrides,
// without validation. A .env file in the working directory is loaded first
// when present. An empty configPath uses defaults and environment only.
func Read(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.path", "data/workflow.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.dev_actor_header", "")

	v.SetDefault("authz.business_hours_timezone", "Local")
	v.SetDefault("authz.business_hours_start", "09:00")
	v.SetDefault("authz.business_hours_end", "17:00")

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.api_timeout", 10*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("instances.default_limit", 50)
	v.SetDefault("instances.max_limit", 500)
}

// bindEnvVars binds the conventional unprefixed names for secrets
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("lark.app_id", EnvPrefix+"_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", EnvPrefix+"_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.alert_chat_id", EnvPrefix+"_LARK_ALERT_CHAT_ID", "LARK_ALERT_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Auth.JWTSecret == "" && c.Auth.DevActorHeader == "" {
		return fmt.Errorf("auth.jwt_secret is required unless auth.dev_actor_header is set")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
		}
		if c.Lark.AlertChatID == "" {
			return fmt.Errorf("lark.alert_chat_id is required when lark is enabled")
		}
	}

	return c.ValidateCore()
}

// ValidateCore checks the sections the operator CLI needs: store, evaluation and listing
func (c *Config) ValidateCore() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := c.Authz.Location(); err != nil {
		return err
	}
	start, end, err := c.Authz.Window()
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("authz.business_hours_start must not be after authz.business_hours_end")
	}

	if c.Instances.DefaultLimit <= 0 || c.Instances.MaxLimit <= 0 {
		return fmt.Errorf("instances limits must be positive")
	}
	return nil
}

// Location resolves the business-hours timezone
func (a AuthzConfig) Location() (*time.Location, error) {
	if a.BusinessHoursTimezone == "" || a.BusinessHoursTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.BusinessHoursTimezone)
	if err != nil {
		return nil, fmt.Errorf("authz.business_hours_timezone: %w", err)
	}
	return loc, nil
}

// Window returns the business-hours bounds in minutes after midnight
func (a AuthzConfig) Window() (start, end int, err error) {
	if start, err = parseClock(a.BusinessHoursStart); err != nil {
		return 0, 0, fmt.Errorf("authz.business_hours_start: %w", err)
	}
	if end, err = parseClock(a.BusinessHoursEnd); err != nil {
		return 0, 0, fmt.Errorf("authz.business_hours_end: %w", err)
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Address is the listen address for the HTTP server
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
