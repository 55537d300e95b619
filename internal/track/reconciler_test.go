package track_test

import (
	"errors"
	"testing"

	"github.com/cyberkart/kiosk/internal/track"
	"github.com/cyberkart/kiosk/internal/wire"
)

func newReconciler(opts track.Options) *track.Reconciler {
	if opts.ProximityThreshold == 0 {
		opts.ProximityThreshold = 0.3
	}
	return track.New(opts)
}

func TestUpdatePositionForbiddenZone(t *testing.T) {
	r := newReconciler(track.Options{
		ForbiddenPositions: [][2]float64{{1.5, 1.5}},
		ForbiddenRadius:    0.1,
		StartX:             0.5,
		StartY:             0.5,
	})

	// Inside the per-axis rejection box on both axes.
	if r.UpdatePosition(1.45, 1.55) {
		t.Error("position inside forbidden box must be rejected")
	}
	if x, y := r.Position(); x != 0.5 || y != 0.5 {
		t.Errorf("rejected update moved position to (%v, %v)", x, y)
	}

	// Only one axis inside the box: the position is valid.
	if !r.UpdatePosition(1.45, 3.0) {
		t.Error("position outside forbidden box was rejected")
	}
	if x, y := r.Position(); x != 1.45 || y != 3.0 {
		t.Errorf("position = (%v, %v), want (1.45, 3.0)", x, y)
	}
}

// An item inside the reach radius is removed by the sweep; items farther
// away stay.
func TestSweepRemovesReachedItems(t *testing.T) {
	r := newReconciler(track.Options{ProximityThreshold: 0.3})

	r.ApplyItemsUpdate([]wire.ItemPoint{
		{Name: "A", X: 0, Y: 0},
		{Name: "B", X: 5, Y: 5},
	})
	r.UpdatePosition(0.05, 0.05)

	reached := r.Sweep()
	if len(reached) != 1 || reached[0].Name != "A" {
		t.Fatalf("reached = %+v, want only A", reached)
	}

	left := r.Items()
	if len(left) != 1 || left[0].Name != "B" {
		t.Errorf("remaining = %+v, want only B", left)
	}
}

// Exactly at the threshold distance the item is kept: removal requires
// strictly closer.
func TestSweepThresholdIsExclusive(t *testing.T) {
	r := newReconciler(track.Options{ProximityThreshold: 0.3})

	r.ApplyItemsUpdate([]wire.ItemPoint{{Name: "Edge", X: 0.3, Y: 0}})
	r.UpdatePosition(0, 0)

	if reached := r.Sweep(); len(reached) != 0 {
		t.Errorf("item at exact threshold removed: %+v", reached)
	}
}

func TestSweepRemovesMultiple(t *testing.T) {
	r := newReconciler(track.Options{ProximityThreshold: 0.3})

	r.ApplyItemsUpdate([]wire.ItemPoint{
		{Name: "A", X: 0.0, Y: 0.0},
		{Name: "B", X: 0.1, Y: 0.1},
		{Name: "C", X: 5.0, Y: 5.0},
		{Name: "D", X: 0.05, Y: 0.0},
	})
	r.UpdatePosition(0, 0)

	reached := r.Sweep()
	if len(reached) != 3 {
		t.Fatalf("reached %d items, want 3: %+v", len(reached), reached)
	}
	left := r.Items()
	if len(left) != 1 || left[0].Name != "C" {
		t.Errorf("remaining = %+v, want only C", left)
	}
}

func TestPinLifecycle(t *testing.T) {
	r := newReconciler(track.Options{})

	if err := r.Pin("Altoids", 4.5, 4.5); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if !r.IsPinned("Altoids") {
		t.Error("IsPinned = false after Pin")
	}
	// Matching is normalized, not byte-exact.
	if !r.IsPinned("  altoids ") {
		t.Error("IsPinned must use normalized names")
	}

	if err := r.Pin("ALTOIDS", 1, 1); !errors.Is(err, track.ErrAlreadyPinned) {
		t.Errorf("duplicate pin err = %v, want ErrAlreadyPinned", err)
	}

	r.Unpin("Altoids")
	if r.IsPinned("Altoids") {
		t.Error("IsPinned = true after Unpin")
	}
	if len(r.Items()) != 0 {
		t.Errorf("unpin left live-set entry: %+v", r.Items())
	}
}

// A pinned item missing from an items_update is re-inserted so the
// proximity sweep keeps seeing it.
func TestItemsUpdateKeepsPinned(t *testing.T) {
	r := newReconciler(track.Options{})

	if err := r.Pin("Altoids", 4.5, 4.5); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	r.ApplyItemsUpdate([]wire.ItemPoint{{Name: "Drink", X: 1, Y: 4}})

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("items = %+v, want Drink plus re-inserted Altoids", items)
	}
	found := false
	for _, it := range items {
		if it.Name == "Altoids" && it.X == 4.5 && it.Y == 4.5 {
			found = true
		}
	}
	if !found {
		t.Errorf("pinned Altoids not re-inserted: %+v", items)
	}
}

// Pinned items are excluded from target selection but still reachable by
// the sweep, which also tears the marker down.
func TestTargetSelectionSkipsPinned(t *testing.T) {
	r := newReconciler(track.Options{ProximityThreshold: 0.3})

	r.ApplyItemsUpdate([]wire.ItemPoint{
		{Name: "Near", X: 0.5, Y: 0.5},
		{Name: "Far", X: 5, Y: 5},
	})
	r.UpdatePosition(0.4, 0.4)

	if target, ok := r.SelectTarget(); !ok || target.Name != "Near" {
		t.Fatalf("target = (%+v, %v), want Near", target, ok)
	}

	if err := r.Pin("Near", 0.5, 0.5); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if target, ok := r.SelectTarget(); !ok || target.Name != "Far" {
		t.Errorf("target after pin = (%+v, %v), want Far", target, ok)
	}

	// Walking onto the pinned item removes it and its marker.
	r.UpdatePosition(0.45, 0.45)
	reached := r.Sweep()
	if len(reached) != 1 || reached[0].Name != "Near" {
		t.Fatalf("reached = %+v, want Near", reached)
	}
	if r.IsPinned("Near") {
		t.Error("reached pin must be torn down")
	}
}

func TestSelectTargetEmptySet(t *testing.T) {
	r := newReconciler(track.Options{})
	if _, ok := r.SelectTarget(); ok {
		t.Error("target reported with no items")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Altoids", "altoids"},
		{"  Altoids \t", "altoids"},
		{"Alt\x00oids\r\n", "altoids"},
		{"CAN CORN", "can corn"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := track.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
