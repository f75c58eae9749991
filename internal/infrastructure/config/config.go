package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Invalid due-time policies for the scheduler loop.
const (
	// InvalidDueSkip silently skips entries whose due time cannot be parsed.
	InvalidDueSkip = "skip"

	// InvalidDueWarn skips the entry but logs a warning and counts it every cycle.
	InvalidDueWarn = "warn"
)

// Config is the root configuration structure for the Gray Logic scheduler.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Devices overrides the built-in device catalog when non-empty.
	Devices []DeviceConfig `yaml:"devices"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// DurableWrites forces synchronous=FULL so an appended schedule entry
	// survives power loss as soon as the insert returns.
	DurableWrites bool `yaml:"durable_writes"`
}

// SchedulerConfig contains settings for the background scheduler loop.
type SchedulerConfig struct {
	// PollInterval is the sleep between two scheduler cycles.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timezone is the location due times are interpreted in.
	// Due times are stored without an offset, so changing this
	// shifts every pending entry. Default: "Local"
	Timezone string `yaml:"timezone"`

	// InvalidDuePolicy controls how entries with an unparsable due time
	// are treated: "skip" or "warn". Default: "skip"
	InvalidDuePolicy string `yaml:"invalid_due_policy"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DeviceConfig describes one entry of the device catalog.
type DeviceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Status      string `yaml:"status"`
	Temperature *int   `yaml:"temperature,omitempty"`
}

// Load reads the YAML file at path over the built-in defaults, then applies
// GRAYLOGIC_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return finish(cfg)
}

// Default returns the built-in configuration with environment overrides.
func Default() (*Config, error) {
	return finish(defaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "Smart Home"},
		Database: DatabaseConfig{
			Path:          "./data/smarthome.db",
			WALMode:       true,
			BusyTimeout:   5,
			DurableWrites: true,
		},
		Scheduler: SchedulerConfig{
			PollInterval:     time.Second,
			Timezone:         "Local",
			InvalidDuePolicy: InvalidDueSkip,
		},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-scheduler"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		InfluxDB:  InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// envOverride binds one GRAYLOGIC_* variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, v string) error
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

var envOverrides = []envOverride{
	{"GRAYLOGIC_DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},
	{"GRAYLOGIC_SCHEDULER_POLL_INTERVAL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Scheduler.PollInterval = d
		return nil
	}},
	{"GRAYLOGIC_SCHEDULER_TIMEZONE", setString(func(c *Config) *string { return &c.Scheduler.Timezone })},
	{"GRAYLOGIC_MQTT_ENABLED", setBool(func(c *Config) *bool { return &c.MQTT.Enabled })},
	{"GRAYLOGIC_MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"GRAYLOGIC_MQTT_PORT", setInt(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"GRAYLOGIC_MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"GRAYLOGIC_MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"GRAYLOGIC_API_HOST", setString(func(c *Config) *string { return &c.API.Host })},
	{"GRAYLOGIC_API_PORT", setInt(func(c *Config) *int { return &c.API.Port })},
	{"GRAYLOGIC_INFLUXDB_ENABLED", setBool(func(c *Config) *bool { return &c.InfluxDB.Enabled })},
	{"GRAYLOGIC_INFLUXDB_URL", setString(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"GRAYLOGIC_INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"GRAYLOGIC_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnvOverrides copies every set, non-empty variable into cfg.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
	}
	return nil
}

// Validate reports every problem at once so operators fix them in one pass.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(msg, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.Scheduler.PollInterval > 0, "scheduler.poll_interval must be positive")
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	check(c.Scheduler.InvalidDuePolicy == InvalidDueSkip || c.Scheduler.InvalidDuePolicy == InvalidDueWarn,
		"scheduler.invalid_due_policy must be %q or %q", InvalidDueSkip, InvalidDueWarn)
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 0 && c.API.Port <= 65535, "api.port must be between 0 and 65535")
	check(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		check(d.ID != "", "devices[%d].id is required", i)
		check(d.ID == "" || !seen[d.ID], "devices[%d].id %q is duplicated", i, d.ID)
		seen[d.ID] = true
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration errors: %w", err)
	}
	return nil
}

// Location resolves the scheduler timezone. "Local" and "" mean the host zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	switch s.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}
