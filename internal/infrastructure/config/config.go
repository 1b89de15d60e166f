package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types accepted in a fan's sensor list.
const (
	SensorTypeGPIO = "gpio"
	SensorTypeTach = "tach"
	SensorTypeNull = "null"
)

// Redundancy policy names accepted per fan.
const (
	PolicyAnyOf    = "anyof"
	PolicyFallback = "fallback"
)

// Config is the root configuration structure for the fan presence service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Inventory InventoryConfig `yaml:"inventory"`
	Fans      []FanConfig     `yaml:"fans"`
}

// ServiceConfig contains service identity and scheduling settings.
type ServiceConfig struct {
	// ID identifies this instance in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	HealthInterval int `yaml:"health_interval"`

	// ResyncInterval is how often every fan re-runs its inventory update
	// regardless of sensor activity (seconds). 0 disables the periodic resync.
	ResyncInterval int `yaml:"resync_interval"`

	// CallTimeout bounds each broker lookup and inventory notify call (seconds).
	CallTimeout int `yaml:"call_timeout"`

	// QueueSize is the capacity of the event loop's callback queue.
	QueueSize int `yaml:"queue_size"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long presence transitions are kept (days).
	// 0 keeps them forever.
	HistoryRetention int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
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

// InventoryConfig names the object mapper and inventory manager endpoints.
// The defaults match the well-known platform names; override only when the
// registry is deployed under different names.
type InventoryConfig struct {
	MapperService    string `yaml:"mapper_service"`
	MapperPath       string `yaml:"mapper_path"`
	MapperInterface  string `yaml:"mapper_interface"`
	ManagerPath      string `yaml:"manager_path"`
	ManagerInterface string `yaml:"manager_interface"`
	ItemInterface    string `yaml:"item_interface"`
}

// FanConfig describes one fan: its inventory identity, its redundancy
// policy, and the presence sensors wired to it.
type FanConfig struct {
	// Name is the human-readable description published as PrettyName.
	Name string `yaml:"name"`

	// Path is the fan's inventory object path, relative to the manager path
	// or absolute.
	Path string `yaml:"path"`

	// Policy is "anyof" (default) or "fallback".
	Policy string `yaml:"policy"`

	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig describes a single presence sensor.
type SensorConfig struct {
	// Type is "gpio", "tach", or "null".
	Type string `yaml:"type"`

	// Device is the gpio-keys input event device (gpio only).
	Device string `yaml:"device,omitempty"`

	// Phys is the physical GPIO device path used for callouts (gpio only).
	Phys string `yaml:"phys,omitempty"`

	// Key is the input key code the line is mapped to (gpio only).
	Key uint16 `yaml:"key,omitempty"`

	// DebounceMS delays the re-read after an edge (gpio only).
	DebounceMS int `yaml:"debounce_ms,omitempty"`

	// Feeds are tachometer feed names published on the bus (tach only).
	Feeds []string `yaml:"feeds,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FANPRESENCE_SECTION_KEY
// For example: FANPRESENCE_DATABASE_PATH, FANPRESENCE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyFanDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:             "fan-presence",
			HealthInterval: 30,
			ResyncInterval: 60,
			CallTimeout:    10,
			QueueSize:      256,
		},
		Database: DatabaseConfig{
			Path:             "./data/fanpresence.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fan-presence",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Inventory: InventoryConfig{
			MapperService:    "xyz.openbmc_project.ObjectMapper",
			MapperPath:       "/xyz/openbmc_project/object_mapper",
			MapperInterface:  "xyz.openbmc_project.ObjectMapper",
			ManagerPath:      "/xyz/openbmc_project/inventory",
			ManagerInterface: "xyz.openbmc_project.Inventory.Manager",
			ItemInterface:    "xyz.openbmc_project.Inventory.Item",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FANPRESENCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FANPRESENCE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("FANPRESENCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FANPRESENCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FANPRESENCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FANPRESENCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("FANPRESENCE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyFanDefaults fills in per-fan values the YAML may leave out.
func (c *Config) applyFanDefaults() {
	for i := range c.Fans {
		if c.Fans[i].Policy == "" {
			c.Fans[i].Policy = PolicyAnyOf
		}
		c.Fans[i].Policy = strings.ToLower(c.Fans[i].Policy)
		for j := range c.Fans[i].Sensors {
			c.Fans[i].Sensors[j].Type = strings.ToLower(c.Fans[i].Sensors[j].Type)
		}
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so that a single run reports all of them.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}
	if c.Service.CallTimeout < 0 {
		errs = append(errs, "service.call_timeout must not be negative")
	}
	if c.Service.ResyncInterval < 0 {
		errs = append(errs, "service.resync_interval must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention_days must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}

	if c.Inventory.ManagerPath == "" || c.Inventory.ManagerInterface == "" {
		errs = append(errs, "inventory.manager_path and inventory.manager_interface are required")
	}
	if c.Inventory.MapperService == "" {
		errs = append(errs, "inventory.mapper_service is required")
	}

	errs = append(errs, c.validateFans()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateFans checks every fan entry and its sensors.
func (c *Config) validateFans() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, fan := range c.Fans {
		prefix := fmt.Sprintf("fans[%d]", i)
		if fan.Name == "" {
			errs = append(errs, prefix+".name is required")
		}
		if fan.Path == "" {
			errs = append(errs, prefix+".path is required")
		} else if seen[fan.Path] {
			errs = append(errs, fmt.Sprintf("%s.path %q is duplicated", prefix, fan.Path))
		}
		seen[fan.Path] = true

		switch fan.Policy {
		case PolicyAnyOf, PolicyFallback, "":
		default:
			errs = append(errs, fmt.Sprintf("%s.policy %q must be anyof or fallback", prefix, fan.Policy))
		}

		if len(fan.Sensors) == 0 {
			errs = append(errs, prefix+".sensors must list at least one sensor")
		}
		for j, s := range fan.Sensors {
			errs = append(errs, validateSensor(fmt.Sprintf("%s.sensors[%d]", prefix, j), s)...)
		}
	}

	return errs
}

func validateSensor(prefix string, s SensorConfig) []string {
	var errs []string
	switch s.Type {
	case SensorTypeGPIO:
		if s.Device == "" {
			errs = append(errs, prefix+".device is required for gpio sensors")
		}
		if s.DebounceMS < 0 {
			errs = append(errs, prefix+".debounce_ms must not be negative")
		}
	case SensorTypeTach:
		if len(s.Feeds) == 0 {
			errs = append(errs, prefix+".feeds must list at least one tach feed")
		}
	case SensorTypeNull:
	default:
		errs = append(errs, fmt.Sprintf("%s.type %q must be gpio, tach, or null", prefix, s.Type))
	}
	return errs
}

// GetCallTimeout returns the per-call remote timeout as a Duration.
func (c *Config) GetCallTimeout() time.Duration {
	return time.Duration(c.Service.CallTimeout) * time.Second
}

// GetResyncInterval returns the periodic resync interval as a Duration.
func (c *Config) GetResyncInterval() time.Duration {
	return time.Duration(c.Service.ResyncInterval) * time.Second
}

// GetHistoryRetention returns how long presence history is kept.
// Zero means forever.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetention) * 24 * time.Hour
}

// GetHealthInterval returns the health publishing interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Service.HealthInterval) * time.Second
}

// GetDebounce returns the sensor's debounce delay as a Duration.
func (s SensorConfig) GetDebounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}
