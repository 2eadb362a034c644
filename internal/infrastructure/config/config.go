package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Scene Rotator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Rotation  RotationConfig  `yaml:"rotation"`
	OBS       OBSConfig       `yaml:"obs"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// RotationConfig contains scheduler settings applied at startup.
type RotationConfig struct {
	// IntervalMS is the time between scene switches in milliseconds.
	// Default: 30000
	IntervalMS int `yaml:"interval_ms"`

	// ActiveGroup is selected on startup if it exists in the loaded groups.
	ActiveGroup string `yaml:"active_group"`

	// Autostart enables rotation immediately after startup.
	Autostart bool `yaml:"autostart"`

	// QueueSize bounds the number of pending switch tasks on the host context.
	// Default: 16
	QueueSize int `yaml:"queue_size"`
}

// OBSConfig contains obs-websocket connection settings.
type OBSConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`

	// RequestTimeout is the maximum time to wait for a request response (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// SceneCacheTTL is how long a fetched scene list is trusted (seconds).
	// Scene events from OBS invalidate the cache earlier.
	SceneCacheTTL int `yaml:"scene_cache_ttl"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// StorageConfig selects where scene groups are persisted.
type StorageConfig struct {
	// Backend is "json" (default) or "sqlite".
	Backend string `yaml:"backend"`

	// GroupsFile is the JSON mapping file used by the json backend.
	GroupsFile string `yaml:"groups_file"`

	// Watch reloads the groups file when it is edited externally.
	Watch bool `yaml:"watch"`

	// SaveDebounce delays writes after API mutations (milliseconds).
	SaveDebounce int `yaml:"save_debounce"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays prunes event history older than this. 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Panel    PanelConfig      `yaml:"panel"`
	MDNS     MDNSConfig       `yaml:"mdns"`
}

// MDNSConfig controls DNS-SD advertisement of the API on the local network.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Instance is the advertised service name; empty uses the hostname.
	Instance string `yaml:"instance"`
}

// PanelConfig controls the browser control panel served at "/".
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir serves the panel from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains bearer token settings. An empty secret disables
// authentication, which is the normal setup for a loopback-only API.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Storage backends.
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// minJWTSecretLength applies only when a secret is configured.
const minJWTSecretLength = 32

// Load reads path over the defaults, applies SCENEROTATOR_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Rotation: RotationConfig{
			IntervalMS: 30000,
			QueueSize:  16,
		},
		OBS: OBSConfig{
			URL:            "ws://127.0.0.1:4455",
			RequestTimeout: 5,
			SceneCacheTTL:  30,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
			},
		},
		Storage: StorageConfig{
			Backend:      StorageJSON,
			GroupsFile:   "./data/scene_groups.json",
			SaveDebounce: 500,
		},
		Database: DatabaseConfig{
			Path:                 "./data/scenerotator.db",
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scenerotator",
			},
			QoS:         1,
			TopicPrefix: "scenerotator",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Panel: PanelConfig{
				Enabled: true,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 300,
			},
		},
	}
}

// envPrefix starts every override variable name.
const envPrefix = "SCENEROTATOR_"

// envOverrides lists the settings that may come from the environment,
// mostly credentials that should stay out of the config file.
func envOverrides(cfg *Config) map[string]*string {
	return map[string]*string{
		"OBS_URL":         &cfg.OBS.URL,
		"OBS_PASSWORD":    &cfg.OBS.Password,
		"DATABASE_PATH":   &cfg.Database.Path,
		"GROUPS_FILE":     &cfg.Storage.GroupsFile,
		"MQTT_HOST":       &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":   &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":   &cfg.MQTT.Auth.Password,
		"API_HOST":        &cfg.API.Host,
		"INFLUXDB_TOKEN":  &cfg.InfluxDB.Token,
		"JWT_SECRET":      &cfg.Security.JWT.Secret,
		"LOG_LEVEL":       &cfg.Logging.Level,
		"ACTIVE_GROUP":    &cfg.Rotation.ActiveGroup,
		"STORAGE_BACKEND": &cfg.Storage.Backend,
		"MDNS_INSTANCE":   &cfg.API.MDNS.Instance,
	}
}

// applyEnvOverrides replaces settings with non-empty SCENEROTATOR_* variables.
func applyEnvOverrides(cfg *Config) {
	for name, field := range envOverrides(cfg) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*field = v
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Rotation validation
	if c.Rotation.IntervalMS <= 0 {
		errs = append(errs, "rotation.interval_ms must be positive")
	}
	if c.Rotation.QueueSize <= 0 {
		errs = append(errs, "rotation.queue_size must be positive")
	}

	// OBS validation
	if !strings.HasPrefix(c.OBS.URL, "ws://") && !strings.HasPrefix(c.OBS.URL, "wss://") {
		errs = append(errs, "obs.url must start with ws:// or wss://")
	}
	if c.OBS.RequestTimeout <= 0 {
		errs = append(errs, "obs.request_timeout must be positive")
	}

	// Storage validation
	switch c.Storage.Backend {
	case StorageJSON:
		if c.Storage.GroupsFile == "" {
			errs = append(errs, "storage.groups_file is required for the json backend")
		}
	case StorageSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, "storage.backend must be json or sqlite")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days must not be negative")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Security validation
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters when set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RotationInterval returns the configured rotation interval as a Duration.
func (c *Config) RotationInterval() time.Duration {
	return time.Duration(c.Rotation.IntervalMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
