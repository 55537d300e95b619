package server

import (
	"fmt"
	"log/slog"

	"github.com/cyberkart/kiosk/internal/inventory"
	"github.com/cyberkart/kiosk/internal/wire"
)

// RetryPublisher publishes with one reconnect-and-retry attempt.
type RetryPublisher interface {
	PublishRetry(topic string, qos byte, payload []byte) error
}

// Propagator converts store snapshots into items_update broadcasts for the
// positioning clients. Every broadcast is a full replace on the receiving
// side; no diffing is performed.
type Propagator struct {
	store *inventory.Store
	pub   RetryPublisher
	topic string
	qos   byte
}

// NewPropagator wires a propagator to a store and an outbound connection.
func NewPropagator(store *inventory.Store, pub RetryPublisher, topic string, qos byte) *Propagator {
	return &Propagator{store: store, pub: pub, topic: topic, qos: qos}
}

// PublishSnapshot broadcasts a point-in-time copy of item locations. The
// store lock is released before any network I/O. A nil filter selects all
// items; filtered names missing from the store are silently skipped.
func (p *Propagator) PublishSnapshot(filter []string) error {
	items := p.store.Snapshot(filter)

	payload, err := wire.EncodeItemsUpdate(items)
	if err != nil {
		return fmt.Errorf("encode items_update: %w", err)
	}

	if err := p.pub.PublishRetry(p.topic, p.qos, payload); err != nil {
		return fmt.Errorf("publish items_update: %w", err)
	}

	slog.Info("items propagated", "topic", p.topic, "count", len(items))
	return nil
}
