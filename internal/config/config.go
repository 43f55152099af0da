// Package config loads scheiberd's YAML configuration, following the
// teacher's layered load order: hardcoded defaults, then the YAML file,
// then environment variable overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eburi/scheiber-bridge/internal/scheiber"
)

// Config is the root configuration structure for scheiberd.
type Config struct {
	CAN     CANConfig     `yaml:"can"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	State   StateConfig   `yaml:"state"`
	Logging LoggingConfig `yaml:"logging"`
	Devices []DeviceEntry `yaml:"devices"`
}

// CANConfig contains CAN transport settings.
type CANConfig struct {
	Interface string `yaml:"interface"` // e.g. "can0"; empty means NullConn
	DryRun    bool   `yaml:"dry_run"`   // force NullConn even if interface is set
	ReadOnly  bool   `yaml:"read_only"` // block sends, mirroring can_bus.py's read_only mode
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
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

// StateConfig locates the persisted-state file.
type StateConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings, same shape as the teacher's.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DeviceEntry is the YAML form of scheiber.DeviceConfig: a discriminated
// device descriptor keyed by Type.
type DeviceEntry struct {
	Type  string `yaml:"type"` // "bloc9" or "bloc7"
	BusID int    `yaml:"bus_id"`

	Lights   map[string]LightEntry  `yaml:"lights,omitempty"`
	Switches map[string]SwitchEntry `yaml:"switches,omitempty"`

	Voltages []SensorEntry `yaml:"voltages,omitempty"`
	Levels   []SensorEntry `yaml:"levels,omitempty"`
}

// LightEntry is the YAML form of scheiber.LightConfig.
type LightEntry struct {
	Name              string `yaml:"name"`
	EntityID          string `yaml:"entity_id"`
	InitialBrightness *int   `yaml:"initial_brightness,omitempty"`
}

// SwitchEntry is the YAML form of scheiber.SwitchConfig.
type SwitchEntry struct {
	Name     string `yaml:"name"`
	EntityID string `yaml:"entity_id"`
}

// SensorEntry is the YAML form of scheiber.SensorConfig. Pattern and Mask
// are written as hex strings ("0x02100600") for readability.
type SensorEntry struct {
	Name      string `yaml:"name"`
	EntityID  string `yaml:"entity_id"`
	Pattern   string `yaml:"pattern"`
	Mask      string `yaml:"mask,omitempty"`
	StartByte int    `yaml:"start_byte"`
	BitLength int    `yaml:"bit_length"`
	Endian    string `yaml:"endian"`
	Scale     float64 `yaml:"scale"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Environment variables follow the pattern SCHEIBER_SECTION_KEY, e.g.
// SCHEIBER_MQTT_HOST, SCHEIBER_CAN_INTERFACE.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scheiberd",
			},
			QoS:         1,
			TopicPrefix: "scheiber",
		},
		State: StateConfig{
			Path: "./data/scheiber-state.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCHEIBER_CAN_INTERFACE"); v != "" {
		cfg.CAN.Interface = v
	}
	if v := os.Getenv("SCHEIBER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SCHEIBER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SCHEIBER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SCHEIBER_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("SCHEIBER_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks top-level configuration and delegates device-structure
// validation to scheiber.Configuration.Validate.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.State.Path == "" {
		errs = append(errs, "state.path is required")
	}

	if _, err := c.ToScheiberConfiguration(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ToScheiberConfiguration converts the YAML device list into the core
// domain's Configuration, parsing hex pattern/mask strings.
func (c *Config) ToScheiberConfiguration() (scheiber.Configuration, error) {
	devices := make([]scheiber.DeviceConfig, 0, len(c.Devices))
	for _, e := range c.Devices {
		dc := scheiber.DeviceConfig{
			Type:  e.Type,
			BusID: e.BusID,
		}

		if len(e.Lights) > 0 {
			dc.Lights = make(map[string]scheiber.LightConfig, len(e.Lights))
			for slot, l := range e.Lights {
				dc.Lights[slot] = scheiber.LightConfig{
					Name: l.Name, EntityID: l.EntityID, InitialBrightness: l.InitialBrightness,
				}
			}
		}
		if len(e.Switches) > 0 {
			dc.Switches = make(map[string]scheiber.SwitchConfig, len(e.Switches))
			for slot, s := range e.Switches {
				dc.Switches[slot] = scheiber.SwitchConfig{Name: s.Name, EntityID: s.EntityID}
			}
		}
		for _, v := range e.Voltages {
			sc, err := toSensorConfig(v)
			if err != nil {
				return scheiber.Configuration{}, err
			}
			dc.Voltages = append(dc.Voltages, sc)
		}
		for _, l := range e.Levels {
			sc, err := toSensorConfig(l)
			if err != nil {
				return scheiber.Configuration{}, err
			}
			dc.Levels = append(dc.Levels, sc)
		}

		devices = append(devices, dc)
	}

	cfg := scheiber.Configuration{Devices: devices}
	if err := cfg.Validate(); err != nil {
		return scheiber.Configuration{}, err
	}
	return cfg, nil
}

func toSensorConfig(e SensorEntry) (scheiber.SensorConfig, error) {
	pattern, err := parseHexUint32(e.Pattern)
	if err != nil {
		return scheiber.SensorConfig{}, fmt.Errorf("sensor %q: pattern: %w", e.Name, err)
	}
	var mask uint32
	if e.Mask != "" {
		mask, err = parseHexUint32(e.Mask)
		if err != nil {
			return scheiber.SensorConfig{}, fmt.Errorf("sensor %q: mask: %w", e.Name, err)
		}
	}
	return scheiber.SensorConfig{
		Name: e.Name, EntityID: e.EntityID,
		Pattern: pattern, Mask: mask,
		StartByte: e.StartByte, BitLength: e.BitLength,
		Endian: e.Endian, Scale: e.Scale,
	}, nil
}

func parseHexUint32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	var v uint32
	_, err := fmt.Sscanf(s, "%x", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}
