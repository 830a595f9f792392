package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	// DriverSQLite3 uses the cgo-based mattn/go-sqlite3 driver.
	DriverSQLite3 = "sqlite3"

	// DriverSQLite uses the pure-Go modernc.org/sqlite driver.
	DriverSQLite = "sqlite"

	// DriverMemory keeps readings in process memory. Nothing survives a restart.
	DriverMemory = "memory"
)

// minJWTSecretLength is the shortest HMAC secret accepted when auth is enabled.
const minJWTSecretLength = 32

// Config is the root configuration structure for the power analytics service.
// Values are loaded from YAML or TOML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service" toml:"service"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	API       APIConfig       `yaml:"api" toml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" toml:"influxdb"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Security  SecurityConfig  `yaml:"security" toml:"security"`
}

// ServiceConfig identifies this instance in logs, traces and MQTT status messages.
type ServiceConfig struct {
	Name       string `yaml:"name" toml:"name" env:"POWERANALYTICS_SERVICE_NAME"`
	InstanceID string `yaml:"instance_id" toml:"instance_id" env:"POWERANALYTICS_INSTANCE_ID"`
}

// DatabaseConfig selects and configures the reading store.
type DatabaseConfig struct {
	Driver      string `yaml:"driver" toml:"driver" env:"POWERANALYTICS_DATABASE_DRIVER"`
	Path        string `yaml:"path" toml:"path" env:"POWERANALYTICS_DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" toml:"host" env:"POWERANALYTICS_API_HOST"`
	Port     int              `yaml:"port" toml:"port" env:"POWERANALYTICS_API_PORT"`
	TLS      TLSConfig        `yaml:"tls" toml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts" toml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors" toml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" toml:"read"`
	Write int `yaml:"write" toml:"write"`
	Idle  int `yaml:"idle" toml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" env:"POWERANALYTICS_CORS_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" toml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live reading feed.
type WebSocketConfig struct {
	Path           string `yaml:"path" toml:"path"`
	MaxMessageSize int    `yaml:"max_message_size" toml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval" toml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout" toml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" toml:"enabled" env:"POWERANALYTICS_MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS       int                 `yaml:"qos" toml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
	Ingest    MQTTIngestConfig    `yaml:"ingest" toml:"ingest"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host" env:"POWERANALYTICS_MQTT_HOST"`
	Port     int    `yaml:"port" toml:"port" env:"POWERANALYTICS_MQTT_PORT"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username" env:"POWERANALYTICS_MQTT_USERNAME"`
	Password string `yaml:"password" toml:"password" env:"POWERANALYTICS_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains reconnection delays in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
}

// MQTTIngestConfig controls reading ingestion from an MQTT topic.
type MQTTIngestConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"POWERANALYTICS_MQTT_INGEST_ENABLED"`
	Topic   string `yaml:"topic" toml:"topic"`
}

// InfluxDBConfig contains settings for mirroring readings into InfluxDB.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled" env:"POWERANALYTICS_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" toml:"url" env:"POWERANALYTICS_INFLUXDB_URL"`
	Token         string `yaml:"token" toml:"token" env:"POWERANALYTICS_INFLUXDB_TOKEN"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// TracingConfig contains OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled" env:"POWERANALYTICS_TRACING_ENABLED"`
	Endpoint    string  `yaml:"endpoint" toml:"endpoint" env:"POWERANALYTICS_TRACING_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"POWERANALYTICS_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"POWERANALYTICS_LOG_FORMAT"`
	Output string `yaml:"output" toml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt" toml:"jwt"`
}

// JWTConfig controls bearer-token verification on the reading routes.
type JWTConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled" env:"POWERANALYTICS_JWT_ENABLED"`
	Secret         string `yaml:"secret" toml:"secret" env:"POWERANALYTICS_JWT_SECRET"`
	Issuer         string `yaml:"issuer" toml:"issuer" env:"POWERANALYTICS_JWT_ISSUER"`
	Audience       string `yaml:"audience" toml:"audience" env:"POWERANALYTICS_JWT_AUDIENCE"`
	AccessTokenTTL int    `yaml:"access_token_ttl" toml:"access_token_ttl"`
}

// Load reads configuration from a file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values; ".toml" files are decoded as TOML, everything else as YAML
//  3. Environment variables (POWERANALYTICS_*)
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// decode unmarshals data into cfg based on the file extension.
func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:       "poweranalytics",
			InstanceID: "poweranalytics-01",
		},
		Database: DatabaseConfig{
			Driver:      DriverSQLite3,
			Path:        "./data/poweranalytics.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "poweranalytics",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Ingest: MQTTIngestConfig{
				Topic: "poweranalytics/ingest/readings",
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Every validation failure joined into one message, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverSQLite3, DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be one of %s, %s, %s", DriverSQLite3, DriverSQLite, DriverMemory))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Ingest.Enabled {
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt.ingest requires mqtt.enabled")
		}
		if c.MQTT.Ingest.Topic == "" {
			errs = append(errs, "mqtt.ingest.topic is required when ingestion is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, "tracing.endpoint is required when tracing is enabled")
	}

	// Short HMAC secrets make forged tokens practical.
	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when auth is enabled (set POWERANALYTICS_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetAccessTokenTTL returns the lifetime of tokens minted by this service.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
