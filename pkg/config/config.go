package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link/mqttlink"
	"github.com/fieldlink-iot/fieldlink-go/pkg/position"
	"github.com/fieldlink-iot/fieldlink-go/pkg/report"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// Validation errors.
var (
	// ErrInvalidPeriods indicates position timeout >= update period.
	ErrInvalidPeriods = errors.New("position timeout must be shorter than update period")

	// ErrMissingTopic indicates a category without a configured topic.
	ErrMissingTopic = errors.New("missing topic")

	// ErrDuplicateAlias indicates two topics sharing an alias.
	ErrDuplicateAlias = errors.New("duplicate topic alias")
)

// categoryKeys maps YAML topic keys onto producer categories.
var categoryKeys = map[string]sensor.Category{
	"environmental": sensor.CategoryEnvironmental,
	"battery":       sensor.CategoryBattery,
	"accelerometer": sensor.CategoryAccelerometerA,
	"magnetometer":  sensor.CategoryMagnetometer,
	"light":         sensor.CategoryLight,
	"gyroscope":     sensor.CategoryGyroscope,
	"position":      sensor.CategoryPosition,
}

// Topic is one publish destination with its registered alias.
type Topic struct {
	Name  string `yaml:"name"`
	Alias uint16 `yaml:"alias"`
}

// Topics configures the pooled-round topic and the per-category ones.
type Topics struct {
	All        Topic            `yaml:"all"`
	Categories map[string]Topic `yaml:"categories"`
}

// Link is one MQTT link profile.
type Link struct {
	// Broker is the broker address (tcp:// or ssl://). Empty on the
	// short-range profile means discover via mDNS at start time.
	Broker string `yaml:"broker,omitempty"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	TLS                bool `yaml:"tls,omitempty"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty"`

	ConnectTimeout Duration `yaml:"connectTimeout,omitempty"`
	KeepAlive      Duration `yaml:"keepAlive,omitempty"`

	// MaxMessageSize bounds the encoded report on this link.
	MaxMessageSize int `yaml:"maxMessageSize,omitempty"`
}

// Periods configures the sampling cadences.
type Periods struct {
	// Update is the shared sampling period of the bus producers.
	Update Duration `yaml:"update"`

	// PositionUpdate and PositionTimeout drive the acquisition cycle.
	PositionUpdate  Duration `yaml:"positionUpdate"`
	PositionTimeout Duration `yaml:"positionTimeout"`
}

// Journal configures the CBOR event log.
type Journal struct {
	Path    string `yaml:"path,omitempty"`
	MaxSize int64  `yaml:"maxSize,omitempty"`
}

// Config is the gateway configuration file.
type Config struct {
	// DeviceID identifies the gateway in every report envelope. Generated
	// and persisted on first start when absent.
	DeviceID string `yaml:"deviceId,omitempty"`

	Topics  Topics  `yaml:"topics"`
	Periods Periods `yaml:"periods"`

	ShortRange Link `yaml:"shortRange"`
	Cellular   Link `yaml:"cellular"`

	Journal Journal `yaml:"journal"`

	// StatusListen is the status API listen address; empty disables it.
	StatusListen string `yaml:"statusListen,omitempty"`

	// GNSSDevice is the receiver's serial device; empty selects the
	// simulated receiver.
	GNSSDevice string `yaml:"gnssDevice,omitempty"`

	// Seed fixes the simulated producers' waveforms.
	Seed int64 `yaml:"seed,omitempty"`

	// StatePath is where the runtime state snapshot lives.
	StatePath string `yaml:"statePath,omitempty"`

	// generatedID marks a device ID filled in by Load rather than set in
	// the file. The caller then prefers a persisted identity.
	generatedID bool
}

// GeneratedDeviceID reports whether the device ID was generated at load
// time instead of read from the file.
func (c *Config) GeneratedDeviceID() bool {
	return c.generatedID
}

// Load reads and validates a configuration file. A missing device ID is
// filled with a fresh UUID; the caller persists it through the state
// store so the identity is stable across restarts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
		c.generatedID = true
	}
	if c.Periods.Update == 0 {
		c.Periods.Update = Duration(sensor.DefaultPeriod)
	}
	if c.Periods.PositionUpdate == 0 {
		c.Periods.PositionUpdate = Duration(position.DefaultUpdatePeriod)
	}
	if c.Periods.PositionTimeout == 0 {
		c.Periods.PositionTimeout = Duration(position.DefaultTimeoutPeriod)
	}
}

// Validate checks period ordering and topic completeness.
func (c *Config) Validate() error {
	if c.Periods.Update <= 0 {
		return fmt.Errorf("update period %v: must be positive", c.Periods.Update)
	}
	if c.Periods.PositionTimeout >= c.Periods.PositionUpdate {
		return fmt.Errorf("%w: %v >= %v", ErrInvalidPeriods,
			c.Periods.PositionTimeout, c.Periods.PositionUpdate)
	}

	if c.Topics.All.Name == "" {
		return fmt.Errorf("%w: all", ErrMissingTopic)
	}
	aliases := map[uint16]string{c.Topics.All.Alias: "all"}
	for key := range categoryKeys {
		t, ok := c.Topics.Categories[key]
		if !ok || t.Name == "" {
			return fmt.Errorf("%w: %s", ErrMissingTopic, key)
		}
		if prev, dup := aliases[t.Alias]; dup {
			return fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateAlias, t.Alias, prev, key)
		}
		aliases[t.Alias] = key
	}
	return nil
}

// ReportTopics converts the YAML topic table into the builder's form.
func (c *Config) ReportTopics() report.Topics {
	topics := report.Topics{
		All: report.Topic{Name: c.Topics.All.Name, Alias: c.Topics.All.Alias},
	}
	for key, cat := range categoryKeys {
		t := c.Topics.Categories[key]
		topics.PerCategory[cat] = report.Topic{Name: t.Name, Alias: t.Alias}
	}
	return topics
}

// LinkConfig converts one link profile into the MQTT client's form.
func (c *Config) LinkConfig(kind link.Kind) mqttlink.Config {
	profile := c.ShortRange
	if kind == link.KindCellular {
		profile = c.Cellular
	}
	return mqttlink.Config{
		Kind:               kind,
		BrokerURL:          profile.Broker,
		ClientID:           c.DeviceID,
		Username:           profile.Username,
		Password:           profile.Password,
		UseTLS:             profile.TLS,
		InsecureSkipVerify: profile.InsecureSkipVerify,
		ConnectTimeout:     profile.ConnectTimeout.Std(),
		KeepAlive:          profile.KeepAlive.Std(),
		MaxMessageSize:     profile.MaxMessageSize,
	}
}
