package kiosk_test

import (
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/config"
	"github.com/cyberkart/kiosk/internal/kiosk"
	"github.com/cyberkart/kiosk/internal/receipt"
)

func TestCartAddMergesByBarcode(t *testing.T) {
	c := kiosk.NewCart()
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))
	c.Add("9876", "Snack", decimal.RequireFromString("20.99"))
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))

	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Barcode != "12434" || lines[0].Quantity != 2 {
		t.Errorf("line 0 = %+v, want Drink x2", lines[0])
	}
	if lines[1].Barcode != "9876" || lines[1].Quantity != 1 {
		t.Errorf("line 1 = %+v, want Snack x1", lines[1])
	}
}

func TestCartRemove(t *testing.T) {
	c := kiosk.NewCart()
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))

	c.Remove("12434")
	if lines := c.Lines(); len(lines) != 1 || lines[0].Quantity != 1 {
		t.Errorf("after first remove: %+v", lines)
	}

	c.Remove("12434")
	if !c.Empty() {
		t.Error("cart not empty after removing last unit")
	}

	// Removing an absent barcode is a no-op.
	c.Remove("nope")
}

func TestCartTotal(t *testing.T) {
	c := kiosk.NewCart()
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))
	c.Add("9876", "Snack", decimal.RequireFromString("20.99"))

	if got := c.Total().StringFixed(2); got != "23.99" {
		t.Errorf("Total = %s, want 23.99", got)
	}

	c.Clear()
	if got := c.Total().StringFixed(2); got != "0.00" {
		t.Errorf("Total after Clear = %s, want 0.00", got)
	}
}

func TestCartCheckoutBody(t *testing.T) {
	c := kiosk.NewCart()
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))
	c.Add("9876", "Snack", decimal.RequireFromString("20.99"))
	c.Add("12434", "Drink", decimal.RequireFromString("1.50"))

	if got := c.CheckoutBody(); got != "CHECKOUT 12434:2 9876:1" {
		t.Errorf("CheckoutBody = %q", got)
	}

	c.Clear()
	if got := c.CheckoutBody(); got != "CHECKOUT" {
		t.Errorf("empty CheckoutBody = %q", got)
	}
}

func TestCartReceiptLines(t *testing.T) {
	c := kiosk.NewCart()
	c.Add("9876", "Snack", decimal.RequireFromString("20.99"))

	lines := c.ReceiptLines()
	if len(lines) != 1 {
		t.Fatalf("got %d receipt lines, want 1", len(lines))
	}
	if lines[0].Name != "Snack" || lines[0].Quantity != 1 || lines[0].Price != "20.99" {
		t.Errorf("receipt line = %+v", lines[0])
	}
}

// The cart flows through the receipt collaborator into a file the
// EMAIL_RECEIPT command can reference.
func TestGenerateReceiptFromCart(t *testing.T) {
	k := kiosk.New(&config.Config{InstanceID: "kiosk-test"}, nil)
	k.UseGenerator(&receipt.TextGenerator{Dir: t.TempDir()})

	k.Cart().Add("12434", "Drink", decimal.RequireFromString("1.50"))
	k.Cart().Add("12434", "Drink", decimal.RequireFromString("1.50"))

	path, err := k.GenerateReceipt()
	if err != nil {
		t.Fatalf("GenerateReceipt: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	for _, want := range []string{"Drink", "x2", "Total: $3.00"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("receipt missing %q:\n%s", want, data)
		}
	}
}
