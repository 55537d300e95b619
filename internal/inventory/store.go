// Package inventory holds the authoritative stock state for the command
// server: item quantities, prices, barcodes and floor locations, plus the
// audit trail of pin requests. All read-modify-write sequences run under a
// single mutex; snapshots copy state out so the lock is never held across
// network I/O.
package inventory

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/wire"
)

var (
	// ErrNotFound reports an unknown item name or barcode.
	ErrNotFound = errors.New("item not found")
)

// Item is one stocked product. Items are never deleted; quantity may
// reach zero.
type Item struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
	Barcode  string
	X, Y     float64
}

// PinRecord is the server-side audit entry for a pin request.
type PinRecord struct {
	ID        string
	ItemName  string
	Barcode   string
	X, Y      float64
	PinnedBy  string
	Timestamp time.Time
}

// LineStatus classifies the outcome of one checkout entry.
type LineStatus int

const (
	// LineDeducted means stock was decremented for the entry.
	LineDeducted LineStatus = iota
	// LineInsufficient means the item was unknown or under-stocked.
	LineInsufficient
	// LineMalformed means the entry did not parse as identifier:qty.
	LineMalformed
)

// CheckoutLine is the per-entry result of a checkout batch.
type CheckoutLine struct {
	Raw       string
	Name      string
	Qty       int
	Remaining int
	Status    LineStatus
}

// Store is the concurrently-accessed inventory mapping with its derived
// barcode index. The zero value is not usable; call New.
type Store struct {
	mu        sync.Mutex
	items     map[string]*Item
	order     []string // insertion order, listings iterate in it
	byBarcode map[string]string
	pins      []PinRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items:     make(map[string]*Item),
		byBarcode: make(map[string]string),
	}
}

// Seed inserts an item at initialization time, replacing nothing: seeding
// an existing name is ignored.
func (s *Store) Seed(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.Name]; exists {
		return
	}
	copied := item
	s.items[item.Name] = &copied
	s.order = append(s.order, item.Name)
	s.byBarcode[item.Barcode] = item.Name
}

// Listing is one name/value pair of a PRICES or STOCK response.
type Listing struct {
	Name  string
	Value string
}

// Prices returns the name:price listing in creation order.
func (s *Store) Prices() []Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Listing, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Listing{Name: name, Value: s.items[name].Price.String()})
	}
	return out
}

// Quantities returns the name:quantity listing in creation order.
func (s *Store) Quantities() []Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Listing, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Listing{Name: name, Value: strconv.Itoa(s.items[name].Quantity)})
	}
	return out
}

// Barcode resolves an item name to its barcode.
func (s *Store) Barcode(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		return "", ErrNotFound
	}
	return item.Barcode, nil
}

// ItemByBarcode resolves a barcode to (name, price).
func (s *Store) ItemByBarcode(code string) (string, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.byBarcode[code]
	if !ok {
		return "", decimal.Decimal{}, ErrNotFound
	}
	return name, s.items[name].Price, nil
}

// Checkout applies a batch of entries atomically under one lock
// acquisition. Each line is independent: a failed line never rolls back
// the lines before it. The second return reports whether any stock
// changed, which obligates the caller to rebroadcast the item set.
func (s *Store) Checkout(entries []wire.CheckoutEntry) ([]CheckoutLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]CheckoutLine, 0, len(entries))
	mutated := false

	for _, e := range entries {
		if e.Malformed {
			lines = append(lines, CheckoutLine{Raw: e.Raw, Status: LineMalformed})
			continue
		}

		name := e.Identifier
		if mapped, ok := s.byBarcode[e.Identifier]; ok {
			name = mapped
		}

		item, ok := s.items[name]
		if !ok || item.Quantity < e.Qty || e.Qty < 0 {
			lines = append(lines, CheckoutLine{Raw: e.Raw, Name: name, Qty: e.Qty, Status: LineInsufficient})
			continue
		}

		item.Quantity -= e.Qty
		mutated = true
		lines = append(lines, CheckoutLine{
			Raw:       e.Raw,
			Name:      name,
			Qty:       e.Qty,
			Remaining: item.Quantity,
			Status:    LineDeducted,
		})
	}

	return lines, mutated
}

// SetLocation moves an item on the floor map.
func (s *Store) SetLocation(name string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		return ErrNotFound
	}
	item.X, item.Y = x, y
	return nil
}

// SetPrice updates an item price.
func (s *Store) SetPrice(name string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		return ErrNotFound
	}
	item.Price = price
	return nil
}

// Add increments an existing item's quantity, or creates the item when the
// name is new. New items get a zero price and a default location derived
// from the store size. Returns the resulting quantity and whether the item
// was created.
func (s *Store) Add(name string, qty int, barcode string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[name]; ok {
		item.Quantity += qty
		return item.Quantity, false
	}

	loc := float64(len(s.items)) + 1.0
	s.items[name] = &Item{
		Name:     name,
		Quantity: qty,
		Price:    decimal.Zero,
		Barcode:  barcode,
		X:        loc,
		Y:        loc,
	}
	s.order = append(s.order, name)
	s.byBarcode[barcode] = name
	return qty, true
}

// Subtract removes quantity from an item. Fails without mutating when the
// item is unknown or under-stocked.
func (s *Store) Subtract(name string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[name]
	if !ok {
		return 0, ErrNotFound
	}
	if item.Quantity < qty {
		return item.Quantity, errors.New("not enough stock")
	}
	item.Quantity -= qty
	return item.Quantity, nil
}

// Pin records a pin request. Resolution order: exact name match, then
// barcode match, then name match when the barcode is the "N/A" sentinel;
// first match wins.
func (s *Store) Pin(name, barcode, clientID string) (PinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item *Item
	switch {
	case s.items[name] != nil:
		item = s.items[name]
	case barcode != "" && s.byBarcode[barcode] != "":
		item = s.items[s.byBarcode[barcode]]
	case barcode == "N/A" && s.items[name] != nil:
		item = s.items[name]
	}
	if item == nil {
		return PinRecord{}, ErrNotFound
	}

	rec := PinRecord{
		ID:        uuid.NewString(),
		ItemName:  item.Name,
		Barcode:   item.Barcode,
		X:         item.X,
		Y:         item.Y,
		PinnedBy:  clientID,
		Timestamp: time.Now(),
	}
	s.pins = append(s.pins, rec)
	return rec, nil
}

// Pins returns a copy of the pin audit trail.
func (s *Store) Pins() []PinRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PinRecord, len(s.pins))
	copy(out, s.pins)
	return out
}

// Snapshot takes a point-in-time copy of item locations for broadcast.
// A nil filter selects every item; with a filter, names absent from the
// store are silently skipped.
func (s *Store) Snapshot(filter []string) []wire.ItemPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filter == nil {
		out := make([]wire.ItemPoint, 0, len(s.order))
		for _, name := range s.order {
			item := s.items[name]
			out = append(out, wire.ItemPoint{Name: name, X: item.X, Y: item.Y})
		}
		return out
	}

	out := make([]wire.ItemPoint, 0, len(filter))
	for _, name := range filter {
		if item, ok := s.items[name]; ok {
			out = append(out, wire.ItemPoint{Name: name, X: item.X, Y: item.Y})
		}
	}
	return out
}

// Items returns a copy of every item in creation order, for the admin
// console's show command.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.items[name])
	}
	return out
}
