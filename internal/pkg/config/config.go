package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Outreach  OutreachConfig  `mapstructure:"outreach"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// MapConfig tunes map sessions.
type MapConfig struct {
	MaxMarkers        int `mapstructure:"max_markers"`
	MaxSearchResults  int `mapstructure:"max_search_results"`
	SettleIntervalMS  int `mapstructure:"settle_interval_ms"`
	LocateTimeoutMS   int `mapstructure:"locate_timeout_ms"`
	RelocateTimeoutMS int `mapstructure:"relocate_timeout_ms"`
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes"`
}

func (m MapConfig) SettleInterval() time.Duration {
	return time.Duration(m.SettleIntervalMS) * time.Millisecond
}

func (m MapConfig) LocateTimeout() time.Duration {
	return time.Duration(m.LocateTimeoutMS) * time.Millisecond
}

func (m MapConfig) RelocateTimeout() time.Duration {
	return time.Duration(m.RelocateTimeoutMS) * time.Millisecond
}

func (m MapConfig) SessionTTL() time.Duration {
	return time.Duration(m.SessionTTLMinutes) * time.Minute
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OutreachConfig struct {
	ProfileBaseURL string `mapstructure:"profile_base_url"`
	ReferralCode   string `mapstructure:"referral_code"`
	SentBy         string `mapstructure:"sent_by"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "annuaire")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "annuaire")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("map.max_markers", 100)
	v.SetDefault("map.max_search_results", 100)
	v.SetDefault("map.settle_interval_ms", 300)
	v.SetDefault("map.locate_timeout_ms", 5000)
	v.SetDefault("map.relocate_timeout_ms", 10000)
	v.SetDefault("map.session_ttl_minutes", 30)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "annuaire-outreach")
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "TravelAgencies.World <contact@travelagencies.world>")
	v.SetDefault("outreach.profile_base_url", "https://travelagencies.world/agencies")
	v.SetDefault("outreach.referral_code", "ORIO-6DF4")
	v.SetDefault("outreach.sent_by", "outreach-bot")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ANNUAIRE_DATABASE_HOST → database.host
	v.SetEnvPrefix("ANNUAIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Map.MaxMarkers <= 0 {
		errs = append(errs, "map.max_markers must be positive")
	}
	if c.Map.MaxSearchResults <= 0 {
		errs = append(errs, "map.max_search_results must be positive")
	}
	if c.Map.SettleIntervalMS <= 0 {
		errs = append(errs, "map.settle_interval_ms must be positive")
	}
	if c.Map.LocateTimeoutMS <= 0 || c.Map.RelocateTimeoutMS <= 0 {
		errs = append(errs, "map.locate_timeout_ms and map.relocate_timeout_ms must be positive")
	}
	if c.Map.SessionTTLMinutes <= 0 {
		errs = append(errs, "map.session_ttl_minutes must be positive")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("smtp.port must be 1-65535, got %d", c.SMTP.Port))
	}
	if c.Outreach.ProfileBaseURL == "" {
		errs = append(errs, "outreach.profile_base_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
