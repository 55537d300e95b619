package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the shared configuration for the stockd, kioskd and tagreaderd
// daemons. Each daemon reads the sections it needs.
type Config struct {
	InstanceID       string `yaml:"instance_id"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"` // graceful shutdown timeout (default: 5)

	MQTT    MQTTConfig    `yaml:"mqtt"`
	Stock   StockConfig   `yaml:"stock"`
	Track   TrackConfig   `yaml:"track"`
	Payment PaymentConfig `yaml:"payment"`
	Email   EmailConfig   `yaml:"email"`
}

// MQTTConfig contains broker settings and the bus topic map.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics names every topic the system uses. Empty values default to
// the canonical topic strings.
type MQTTTopics struct {
	Commands  string `yaml:"commands"`
	Responses string `yaml:"responses"`
	Items     string `yaml:"items"`
	Position  string `yaml:"position"`
	Checkout  string `yaml:"checkout"`
	Pinned    string `yaml:"pinned"`
}

// StockConfig seeds the inventory store at server start.
type StockConfig struct {
	Items []SeedItem `yaml:"items"`
}

// SeedItem is one initial inventory entry.
type SeedItem struct {
	Name     string     `yaml:"name"`
	Quantity int        `yaml:"quantity"`
	Price    string     `yaml:"price"` // decimal string, e.g. "20.99"
	Barcode  string     `yaml:"barcode"`
	Location [2]float64 `yaml:"location"`
}

// TrackConfig tunes the position/proximity reconciler.
type TrackConfig struct {
	ProximityThreshold float64      `yaml:"proximity_threshold"`  // reach radius (default: 0.3)
	ForbiddenRadius    float64      `yaml:"forbidden_radius"`     // per-axis rejection box (default: 0.1)
	TargetPeriodMS     int          `yaml:"target_period_ms"`     // target selection period (default: 500)
	ProximityPeriodMS  int          `yaml:"proximity_period_ms"`  // reach sweep period (default: 500)
	ForbiddenPositions [][2]float64 `yaml:"forbidden_positions"`
}

// PaymentConfig tunes the payment correlator and reader bridge.
type PaymentConfig struct {
	TimeoutS        int `yaml:"timeout_s"`         // tag wait deadline (default: 60)
	DebounceMS      int `yaml:"debounce_ms"`       // duplicate-read window (default: 1000)
	PollIntervalMS  int `yaml:"poll_interval_ms"`  // reader poll period (default: 100)
	RequestTimeoutS int `yaml:"request_timeout_s"` // command response wait (default: 5)
}

// EmailConfig configures the SMTP receipt mailer.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
	Subject  string `yaml:"subject"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
