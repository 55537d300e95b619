package inventory_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/inventory"
	"github.com/cyberkart/kiosk/internal/wire"
)

func seededStore(t *testing.T) *inventory.Store {
	t.Helper()
	s := inventory.New()
	s.Seed(inventory.Item{Name: "Drink", Quantity: 30, Price: decimal.RequireFromString("1.50"), Barcode: "12434", X: 1.0, Y: 4.0})
	s.Seed(inventory.Item{Name: "Snack", Quantity: 50, Price: decimal.RequireFromString("20.99"), Barcode: "9876", X: 2.0, Y: 5.0})
	s.Seed(inventory.Item{Name: "Altoid", Quantity: 2, Price: decimal.RequireFromString("0.01"), Barcode: "022000159335", X: 3.0, Y: 3.0})
	return s
}

func TestListingsKeepCreationOrder(t *testing.T) {
	s := seededStore(t)

	prices := s.Prices()
	wantNames := []string{"Drink", "Snack", "Altoid"}
	if len(prices) != len(wantNames) {
		t.Fatalf("got %d price entries, want %d", len(prices), len(wantNames))
	}
	for i, want := range wantNames {
		if prices[i].Name != want {
			t.Errorf("prices[%d].Name = %q, want %q", i, prices[i].Name, want)
		}
	}
	if prices[1].Value != "20.99" {
		t.Errorf("Snack price = %q, want 20.99", prices[1].Value)
	}

	qty := s.Quantities()
	if qty[2].Value != "2" {
		t.Errorf("Altoid quantity = %q, want 2", qty[2].Value)
	}
}

func TestLookups(t *testing.T) {
	s := seededStore(t)

	code, err := s.Barcode("Drink")
	if err != nil || code != "12434" {
		t.Errorf("Barcode(Drink) = (%q, %v)", code, err)
	}
	if _, err := s.Barcode("Ghost"); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("Barcode(Ghost) err = %v, want ErrNotFound", err)
	}

	name, price, err := s.ItemByBarcode("9876")
	if err != nil || name != "Snack" || price.String() != "20.99" {
		t.Errorf("ItemByBarcode(9876) = (%q, %s, %v)", name, price, err)
	}
	if _, _, err := s.ItemByBarcode("000"); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("ItemByBarcode(000) err = %v, want ErrNotFound", err)
	}
}

// Each line of a batch is independent: failures neither roll back earlier
// deductions nor block later ones, and quantity never goes negative.
func TestCheckoutBatch(t *testing.T) {
	s := seededStore(t)

	lines, mutated := s.Checkout([]wire.CheckoutEntry{
		{Identifier: "12434", Qty: 2, Raw: "12434:2"},        // barcode resolution
		{Identifier: "Altoid", Qty: 5, Raw: "Altoid:5"},      // only 2 in stock
		{Raw: "garbage", Malformed: true},                    // parse failure
		{Identifier: "Snack", Qty: 1, Raw: "Snack:1"},        // name resolution
		{Identifier: "Nothing", Qty: 1, Raw: "Nothing:1"},    // unknown item
	})
	if !mutated {
		t.Fatal("batch with successful lines must report mutation")
	}
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}

	if lines[0].Status != inventory.LineDeducted || lines[0].Name != "Drink" || lines[0].Remaining != 28 {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Status != inventory.LineInsufficient {
		t.Errorf("line 1 = %+v, want insufficient", lines[1])
	}
	if lines[2].Status != inventory.LineMalformed || lines[2].Raw != "garbage" {
		t.Errorf("line 2 = %+v, want malformed", lines[2])
	}
	if lines[3].Status != inventory.LineDeducted || lines[3].Remaining != 49 {
		t.Errorf("line 3 = %+v", lines[3])
	}
	if lines[4].Status != inventory.LineInsufficient {
		t.Errorf("line 4 = %+v, want insufficient", lines[4])
	}

	// Altoid was insufficient, so its stock is untouched.
	if q := s.Quantities()[2].Value; q != "2" {
		t.Errorf("Altoid quantity after failed line = %q, want 2", q)
	}
}

func TestCheckoutRejectsNegativeQty(t *testing.T) {
	s := seededStore(t)

	lines, mutated := s.Checkout([]wire.CheckoutEntry{
		{Identifier: "Drink", Qty: -3, Raw: "Drink:-3"},
	})
	if mutated {
		t.Error("negative quantity must not mutate stock")
	}
	if lines[0].Status != inventory.LineInsufficient {
		t.Errorf("line = %+v, want insufficient", lines[0])
	}
}

func TestCheckoutNoMutationNoRebroadcast(t *testing.T) {
	s := seededStore(t)

	_, mutated := s.Checkout([]wire.CheckoutEntry{
		{Identifier: "Ghost", Qty: 1, Raw: "Ghost:1"},
		{Raw: "bad", Malformed: true},
	})
	if mutated {
		t.Error("all-failed batch must not report mutation")
	}
}

func TestPinResolution(t *testing.T) {
	s := seededStore(t)

	// Exact name wins first.
	rec, err := s.Pin("Drink", "9876", "kiosk-1")
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if rec.ItemName != "Drink" {
		t.Errorf("name match: pinned %q, want Drink", rec.ItemName)
	}

	// Unknown name falls through to barcode.
	rec, err = s.Pin("not a name", "9876", "kiosk-1")
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if rec.ItemName != "Snack" {
		t.Errorf("barcode match: pinned %q, want Snack", rec.ItemName)
	}
	if rec.X != 2.0 || rec.Y != 5.0 {
		t.Errorf("pin location = (%v, %v), want (2, 5)", rec.X, rec.Y)
	}

	// N/A barcode pins by name only.
	rec, err = s.Pin("Altoid", "N/A", "kiosk-2")
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if rec.ItemName != "Altoid" {
		t.Errorf("N/A match: pinned %q, want Altoid", rec.ItemName)
	}

	if _, err := s.Pin("Ghost", "nope", "kiosk-1"); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("Pin(Ghost) err = %v, want ErrNotFound", err)
	}

	if got := len(s.Pins()); got != 3 {
		t.Errorf("audit trail has %d records, want 3", got)
	}
}

func TestAddAndSubtract(t *testing.T) {
	s := seededStore(t)

	if q, created := s.Add("Drink", 10, ""); created || q != 40 {
		t.Errorf("Add existing = (%d, %v), want (40, false)", q, created)
	}

	q, created := s.Add("Gum", 5, "555")
	if !created || q != 5 {
		t.Errorf("Add new = (%d, %v), want (5, true)", q, created)
	}
	if name, _, err := s.ItemByBarcode("555"); err != nil || name != "Gum" {
		t.Errorf("new item not indexed by barcode: (%q, %v)", name, err)
	}

	if q, err := s.Subtract("Gum", 2); err != nil || q != 3 {
		t.Errorf("Subtract = (%d, %v), want (3, nil)", q, err)
	}
	if _, err := s.Subtract("Gum", 99); err == nil {
		t.Error("over-subtract must fail")
	}
	if _, err := s.Subtract("Ghost", 1); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("Subtract(Ghost) err = %v, want ErrNotFound", err)
	}
}

func TestSnapshot(t *testing.T) {
	s := seededStore(t)

	all := s.Snapshot(nil)
	if len(all) != 3 {
		t.Fatalf("full snapshot has %d items, want 3", len(all))
	}
	if all[0] != (wire.ItemPoint{Name: "Drink", X: 1.0, Y: 4.0}) {
		t.Errorf("snapshot[0] = %+v", all[0])
	}

	// Unknown names in a filter are skipped, not errored.
	sel := s.Snapshot([]string{"Snack", "Ghost"})
	if len(sel) != 1 || sel[0].Name != "Snack" {
		t.Errorf("filtered snapshot = %+v, want only Snack", sel)
	}
}

func TestSetLocationAndPrice(t *testing.T) {
	s := seededStore(t)

	if err := s.SetLocation("Drink", 6.5, 1.5); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	snap := s.Snapshot([]string{"Drink"})
	if snap[0].X != 6.5 || snap[0].Y != 1.5 {
		t.Errorf("location after move = (%v, %v)", snap[0].X, snap[0].Y)
	}

	if err := s.SetPrice("Drink", decimal.RequireFromString("2.25")); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}
	if got := s.Prices()[0].Value; got != "2.25" {
		t.Errorf("price after update = %q, want 2.25", got)
	}

	if err := s.SetLocation("Ghost", 0, 0); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("SetLocation(Ghost) err = %v, want ErrNotFound", err)
	}
}
