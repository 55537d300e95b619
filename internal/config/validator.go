package config

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks a configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	// Canonical topic strings; the unmodified UI expects these.
	if cfg.MQTT.Topics.Commands == "" {
		cfg.MQTT.Topics.Commands = "shopping_app/commands"
	}
	if cfg.MQTT.Topics.Responses == "" {
		cfg.MQTT.Topics.Responses = "shopping_app/responses"
	}
	if cfg.MQTT.Topics.Items == "" {
		cfg.MQTT.Topics.Items = "indoor/items"
	}
	if cfg.MQTT.Topics.Position == "" {
		cfg.MQTT.Topics.Position = "indoor/position"
	}
	if cfg.MQTT.Topics.Checkout == "" {
		cfg.MQTT.Topics.Checkout = "indoor/checkout"
	}
	if cfg.MQTT.Topics.Pinned == "" {
		cfg.MQTT.Topics.Pinned = "shopping_app/pinned_items"
	}

	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"commands":  1,
			"responses": 1,
			"items":     1,
			"position":  0,
			"checkout":  1,
			"pinned":    0,
		}
	}

	for i, item := range cfg.Stock.Items {
		if item.Name == "" {
			return fmt.Errorf("stock.items[%d]: name is required", i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("stock.items[%d] (%s): quantity must be >= 0", i, item.Name)
		}
		if item.Barcode == "" {
			return fmt.Errorf("stock.items[%d] (%s): barcode is required", i, item.Name)
		}
		if _, err := decimal.NewFromString(item.Price); err != nil {
			return fmt.Errorf("stock.items[%d] (%s): invalid price %q", i, item.Name, item.Price)
		}
	}

	if cfg.Track.ProximityThreshold <= 0 {
		cfg.Track.ProximityThreshold = 0.3
	}
	if cfg.Track.ForbiddenRadius <= 0 {
		cfg.Track.ForbiddenRadius = 0.1
	}
	if cfg.Track.TargetPeriodMS <= 0 {
		cfg.Track.TargetPeriodMS = 500
	}
	if cfg.Track.ProximityPeriodMS <= 0 {
		cfg.Track.ProximityPeriodMS = 500
	}

	if cfg.Payment.TimeoutS <= 0 {
		cfg.Payment.TimeoutS = 60
	}
	if cfg.Payment.DebounceMS <= 0 {
		cfg.Payment.DebounceMS = 1000
	}
	if cfg.Payment.PollIntervalMS <= 0 {
		cfg.Payment.PollIntervalMS = 100
	}
	if cfg.Payment.RequestTimeoutS <= 0 {
		cfg.Payment.RequestTimeoutS = 5
	}

	if cfg.Email.Port <= 0 {
		cfg.Email.Port = 587
	}
	if cfg.Email.Subject == "" {
		cfg.Email.Subject = "Your CyberKart Receipt"
	}

	return nil
}
