// Package track maintains the kiosk's live view of the floor: the device
// position, the authoritative item list fed by items_update broadcasts,
// and the pinned-item overlay. It selects the nearest navigation target
// and removes items the shopper has reached.
package track

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cyberkart/kiosk/internal/wire"
)

// ErrAlreadyPinned reports a duplicate pin attempt for an item name.
var ErrAlreadyPinned = errors.New("item already pinned")

// EventType classifies reconciler events.
type EventType int

const (
	// EventPositionUpdated fires on every accepted position update.
	EventPositionUpdated EventType = iota
	// EventItemsReplaced fires when an items_update replaces the set.
	EventItemsReplaced
	// EventTargetChanged fires when the nearest non-pinned item changes.
	EventTargetChanged
	// EventItemReached fires when the position enters an item's reach
	// radius; the item has already been removed from the live set.
	EventItemReached
	// EventPinAdded fires when a pin marker is created.
	EventPinAdded
	// EventPinRemoved fires on explicit unpin or reach teardown.
	EventPinRemoved
)

// Event is delivered to the rendering collaborator. Delivery is
// non-blocking: a slow consumer loses events, never stalls tracking.
type Event struct {
	Type   EventType
	Item   wire.ItemPoint
	Pinned bool
}

// Options tunes the reconciler.
type Options struct {
	ProximityThreshold float64
	ForbiddenRadius    float64
	ForbiddenPositions [][2]float64
	TargetPeriod       time.Duration
	ProximityPeriod    time.Duration
	StartX, StartY     float64
	EventBuffer        int
}

type pinEntry struct {
	display string
	x, y    float64
}

// Reconciler owns the kiosk-side tracking state. Mutating entry points are
// safe for concurrent use; the periodic evaluation runs in Run.
type Reconciler struct {
	opts Options

	mu     sync.Mutex
	posX   float64
	posY   float64
	items  []wire.ItemPoint
	pinned map[string]pinEntry // keyed by normalized name
	target string              // normalized name of current target

	events chan Event
}

// New creates a reconciler.
func New(opts Options) *Reconciler {
	if opts.ProximityThreshold <= 0 {
		opts.ProximityThreshold = 0.3
	}
	if opts.ForbiddenRadius <= 0 {
		opts.ForbiddenRadius = 0.1
	}
	if opts.TargetPeriod <= 0 {
		opts.TargetPeriod = 500 * time.Millisecond
	}
	if opts.ProximityPeriod <= 0 {
		opts.ProximityPeriod = 500 * time.Millisecond
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}

	return &Reconciler{
		opts:   opts,
		posX:   opts.StartX,
		posY:   opts.StartY,
		pinned: make(map[string]pinEntry),
		events: make(chan Event, opts.EventBuffer),
	}
}

// Events exposes the outbound event stream.
func (r *Reconciler) Events() <-chan Event {
	return r.events
}

// Run drives target selection and the proximity sweep on their own
// periods until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	targetTick := time.NewTicker(r.opts.TargetPeriod)
	defer targetTick.Stop()
	proximityTick := time.NewTicker(r.opts.ProximityPeriod)
	defer proximityTick.Stop()

	slog.Info("reconciler started",
		"proximity_threshold", r.opts.ProximityThreshold,
		"target_period", r.opts.TargetPeriod,
		"proximity_period", r.opts.ProximityPeriod,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopping")
			return
		case <-targetTick.C:
			r.SelectTarget()
		case <-proximityTick.C:
			r.Sweep()
		}
	}
}

// UpdatePosition applies a position update unless it falls inside the
// per-axis rejection box of a forbidden position. Rejected updates are
// dropped without surfacing an error: the position feed is fire-and-forget
// telemetry.
func (r *Reconciler) UpdatePosition(x, y float64) bool {
	for _, f := range r.opts.ForbiddenPositions {
		if math.Abs(x-f[0]) < r.opts.ForbiddenRadius && math.Abs(y-f[1]) < r.opts.ForbiddenRadius {
			slog.Debug("position filtered out", "x", x, "y", y)
			return false
		}
	}

	r.mu.Lock()
	r.posX, r.posY = x, y
	r.mu.Unlock()

	r.emit(Event{Type: EventPositionUpdated, Item: wire.ItemPoint{X: x, Y: y}})
	return true
}

// Position returns the current device position.
func (r *Reconciler) Position() (x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posX, r.posY
}

// ApplyItemsUpdate replaces the live item set wholesale. Pinned items
// missing from the broadcast are re-inserted from the overlay so the
// proximity sweep keeps seeing them.
func (r *Reconciler) ApplyItemsUpdate(items []wire.ItemPoint) {
	r.mu.Lock()

	r.items = append(r.items[:0:0], items...)

	present := make(map[string]bool, len(items))
	for _, item := range items {
		present[Normalize(item.Name)] = true
	}
	for norm, pin := range r.pinned {
		if !present[norm] {
			r.items = append(r.items, wire.ItemPoint{Name: pin.display, X: pin.x, Y: pin.y})
		}
	}
	count := len(r.items)
	r.mu.Unlock()

	slog.Debug("items replaced", "count", count)
	r.emit(Event{Type: EventItemsReplaced})
}

// Items returns a copy of the live item set.
func (r *Reconciler) Items() []wire.ItemPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(r.items[:0:0], r.items...)
}

// Pin creates the client-side pin marker and inserts (or updates) the item
// in the live set so proximity checks see it. At most one active marker
// exists per item name; duplicates are rejected.
func (r *Reconciler) Pin(name string, x, y float64) error {
	norm := Normalize(name)

	r.mu.Lock()
	if _, dup := r.pinned[norm]; dup {
		r.mu.Unlock()
		return ErrAlreadyPinned
	}
	r.pinned[norm] = pinEntry{display: name, x: x, y: y}

	updated := false
	for i, item := range r.items {
		if Normalize(item.Name) == norm {
			r.items[i] = wire.ItemPoint{Name: item.Name, X: x, Y: y}
			updated = true
			break
		}
	}
	if !updated {
		r.items = append(r.items, wire.ItemPoint{Name: name, X: x, Y: y})
	}
	r.mu.Unlock()

	slog.Info("item pinned locally", "item", name, "x", x, "y", y)
	r.emit(Event{Type: EventPinAdded, Item: wire.ItemPoint{Name: name, X: x, Y: y}, Pinned: true})
	return nil
}

// Unpin removes the marker and the live-set entry for an item.
func (r *Reconciler) Unpin(name string) {
	norm := Normalize(name)

	r.mu.Lock()
	pin, ok := r.pinned[norm]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.pinned, norm)
	for i, item := range r.items {
		if Normalize(item.Name) == norm {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	slog.Info("item unpinned", "item", pin.display)
	r.emit(Event{Type: EventPinRemoved, Item: wire.ItemPoint{Name: pin.display, X: pin.x, Y: pin.y}, Pinned: true})
}

// IsPinned reports whether an item name has an active marker.
func (r *Reconciler) IsPinned(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pinned[Normalize(name)]
	return ok
}

// SelectTarget picks the nearest non-pinned item as the navigation target.
// Ties break toward the first-encountered item in the current snapshot.
// Returns the target and false when no candidate exists.
func (r *Reconciler) SelectTarget() (wire.ItemPoint, bool) {
	r.mu.Lock()

	bestIdx := -1
	bestDist := math.Inf(1)
	for i, item := range r.items {
		if _, pinnedItem := r.pinned[Normalize(item.Name)]; pinnedItem {
			continue
		}
		if d := dist(r.posX, r.posY, item.X, item.Y); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		r.target = ""
		r.mu.Unlock()
		return wire.ItemPoint{}, false
	}

	target := r.items[bestIdx]
	changed := r.target != Normalize(target.Name)
	r.target = Normalize(target.Name)
	r.mu.Unlock()

	if changed {
		slog.Debug("target changed", "item", target.Name, "distance", bestDist)
		r.emit(Event{Type: EventTargetChanged, Item: target})
	}
	return target, true
}

// Sweep removes every item, pinned or not, whose distance to the current
// position is strictly below the threshold. Reached pins are torn down
// with their live-set entry. Returns the reached items.
func (r *Reconciler) Sweep() []wire.ItemPoint {
	r.mu.Lock()

	var reachedIdx []int
	for i, item := range r.items {
		if dist(r.posX, r.posY, item.X, item.Y) < r.opts.ProximityThreshold {
			reachedIdx = append(reachedIdx, i)
		}
	}

	var reached []wire.ItemPoint
	var droppedPins []wire.ItemPoint
	// Reverse index order keeps earlier indices valid during removal.
	for k := len(reachedIdx) - 1; k >= 0; k-- {
		i := reachedIdx[k]
		item := r.items[i]
		r.items = append(r.items[:i], r.items[i+1:]...)

		norm := Normalize(item.Name)
		if _, pinnedItem := r.pinned[norm]; pinnedItem {
			delete(r.pinned, norm)
			droppedPins = append(droppedPins, item)
		}
		reached = append(reached, item)
	}
	r.mu.Unlock()

	for _, item := range reached {
		slog.Info("item reached", "item", item.Name)
		r.emit(Event{Type: EventItemReached, Item: item})
	}
	for _, item := range droppedPins {
		r.emit(Event{Type: EventPinRemoved, Item: item, Pinned: true})
	}
	return reached
}

func (r *Reconciler) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		// Rendering fell behind; tracking state is already consistent.
	}
}

func dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}
