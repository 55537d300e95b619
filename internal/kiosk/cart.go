package kiosk

import (
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/receipt"
)

// CartLine is one scanned product with its accumulated quantity.
type CartLine struct {
	Barcode  string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Cart accumulates scanned products for checkout.
type Cart struct {
	mu    sync.Mutex
	lines []CartLine
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add puts one unit of a product in the cart, merging with an existing
// line for the same barcode.
func (c *Cart) Add(barcode, name string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, CartLine{Barcode: barcode, Name: name, Price: price, Quantity: 1})
}

// Remove takes one unit of a barcode out of the cart, dropping the line
// at zero.
func (c *Cart) Remove(barcode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines[i].Quantity--
			if c.lines[i].Quantity <= 0 {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
			}
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines returns a copy of the cart contents.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(c.lines[:0:0], c.lines...)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Total sums price x quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// CheckoutBody renders the cart as a CHECKOUT command body.
func (c *Cart) CheckoutBody() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := make([]string, 0, len(c.lines)+1)
	parts = append(parts, "CHECKOUT")
	for _, line := range c.lines {
		parts = append(parts, line.Barcode+":"+strconv.Itoa(line.Quantity))
	}
	return strings.Join(parts, " ")
}

// ReceiptLines renders the cart for the receipt collaborators.
func (c *Cart) ReceiptLines() []receipt.Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]receipt.Line, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, receipt.Line{
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Price.StringFixed(2),
		})
	}
	return out
}
