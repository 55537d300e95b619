package server

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cyberkart/kiosk/internal/inventory"
	"github.com/cyberkart/kiosk/internal/receipt"
	"github.com/cyberkart/kiosk/internal/transport"
	"github.com/cyberkart/kiosk/internal/wire"
)

// Handlers executes decoded commands against the store and renders the
// response body for each. Execution is stateless between requests: all
// state lives in the store, so handlers can run concurrently relying only
// on the store's internal lock.
type Handlers struct {
	store        *inventory.Store
	propagator   *Propagator
	mailer       receipt.Mailer
	pub          transport.Publisher
	pinnedTopic  string
	pinnedQoS    byte
	emailSubject string
}

// NewHandlers wires the command executors.
func NewHandlers(store *inventory.Store, propagator *Propagator, mailer receipt.Mailer, pub transport.Publisher, pinnedTopic string, pinnedQoS byte, emailSubject string) *Handlers {
	return &Handlers{
		store:        store,
		propagator:   propagator,
		mailer:       mailer,
		pub:          pub,
		pinnedTopic:  pinnedTopic,
		pinnedQoS:    pinnedQoS,
		emailSubject: emailSubject,
	}
}

// Exec decodes and runs one command body, returning exactly one response
// body. Malformed payloads and handler failures come back as ERROR:
// responses, never as silence.
func (h *Handlers) Exec(clientID, body string) string {
	cmd, err := wire.ParseCommand(body)
	if err != nil {
		return parseErrorResponse(err)
	}

	switch c := cmd.(type) {
	case wire.Prices:
		return renderListing(h.store.Prices())

	case wire.Stock:
		return renderListing(h.store.Quantities())

	case wire.GetBarcode:
		code, err := h.store.Barcode(c.Item)
		if err != nil {
			return fmt.Sprintf("ERROR:Item %s not found", c.Item)
		}
		return fmt.Sprintf("BARCODE:%s:%s", c.Item, code)

	case wire.GetItem:
		name, price, err := h.store.ItemByBarcode(c.Barcode)
		if err != nil {
			return fmt.Sprintf("ERROR:Barcode %s not found", c.Barcode)
		}
		return fmt.Sprintf("ITEM:%s:%s:%s", c.Barcode, name, price.String())

	case wire.PinItem:
		return h.execPin(clientID, c)

	case wire.Checkout:
		return h.execCheckout(c)

	case wire.SetLocation:
		if err := h.store.SetLocation(c.Item, c.X, c.Y); err != nil {
			return fmt.Sprintf("ERROR:Item %s not found", c.Item)
		}
		h.rebroadcast()
		return fmt.Sprintf("Location for %s set to (%s, %s)", c.Item, formatCoord(c.X), formatCoord(c.Y))

	case wire.EmailReceipt:
		return h.execEmailReceipt(c)

	case wire.Propagate:
		if err := h.propagator.PublishSnapshot(nil); err != nil {
			slog.Error("manual propagation failed", "error", err)
			return "Failed to propagate items"
		}
		return "Items propagated successfully to indoor positioning system"

	default:
		return "Unknown command"
	}
}

func (h *Handlers) execPin(clientID string, c wire.PinItem) string {
	rec, err := h.store.Pin(c.Name, c.Barcode, clientID)
	if err != nil {
		slog.Info("pin rejected, item unknown", "item", c.Name, "barcode", c.Barcode, "client", clientID)
		return fmt.Sprintf("ITEM_PINNED:%s:NOT_FOUND", c.Name)
	}

	slog.Info("item pinned",
		"item", rec.ItemName,
		"x", rec.X,
		"y", rec.Y,
		"client", clientID,
	)

	// Broadcast to every kiosk so remote pins show up too.
	if payload, err := wire.EncodePinnedBroadcast(rec.ItemName, rec.Barcode, rec.X, rec.Y, time.Now().Unix()); err == nil {
		if err := h.pub.Publish(h.pinnedTopic, h.pinnedQoS, payload); err != nil {
			slog.Warn("pinned broadcast failed", "item", rec.ItemName, "error", err)
		}
	}

	return fmt.Sprintf("ITEM_PINNED:%s:SUCCESS:Location(%.1f,%.1f)", rec.ItemName, rec.X, rec.Y)
}

func (h *Handlers) execCheckout(c wire.Checkout) string {
	lines, mutated := h.store.Checkout(c.Entries)

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch line.Status {
		case inventory.LineDeducted:
			out = append(out, fmt.Sprintf("Deducted %d %s(s). Remaining: %d", line.Qty, line.Name, line.Remaining))
		case inventory.LineInsufficient:
			out = append(out, fmt.Sprintf("Not enough %s in stock.", line.Name))
		case inventory.LineMalformed:
			out = append(out, fmt.Sprintf("Invalid format: %s", line.Raw))
		}
	}

	if mutated {
		h.rebroadcast()
	}

	return strings.Join(out, "\n")
}

func (h *Handlers) execEmailReceipt(c wire.EmailReceipt) string {
	if _, err := os.Stat(c.PDFPath); err != nil {
		return fmt.Sprintf("ERROR:PDF file not found: %s", c.PDFPath)
	}

	body := "Thank you for shopping with CyberKart!\n" +
		"Your receipt is attached to this email.\n\n" +
		"Keep this receipt for your records.\n"

	if err := h.mailer.Send(c.Address, h.emailSubject, body, c.PDFPath); err != nil {
		slog.Error("receipt email failed", "to", c.Address, "error", err)
		return fmt.Sprintf("ERROR:Failed to send email to %s", c.Address)
	}
	return fmt.Sprintf("Receipt with PDF emailed to %s", c.Address)
}

// rebroadcast runs the propagation pipeline after a mutating command. A
// failed broadcast is logged; the command's own response already went out.
func (h *Handlers) rebroadcast() {
	if err := h.propagator.PublishSnapshot(nil); err != nil {
		slog.Error("auto-propagation failed", "error", err)
	}
}

// parseErrorResponse maps grammar failures to the verb-specific error
// strings the UI expects.
func parseErrorResponse(err error) string {
	pe, ok := err.(*wire.ParseError)
	if !ok {
		return fmt.Sprintf("ERROR:%s", err)
	}

	switch pe.Verb {
	case "PIN_ITEM":
		return "ERROR:Invalid PIN command format"
	case "SET_ITEM_LOCATION":
		if pe.Reason == "invalid coordinates" {
			return "ERROR:Invalid coordinates"
		}
		return "ERROR:Invalid format. Use SET_ITEM_LOCATION:item_name:x:y"
	case "EMAIL_RECEIPT":
		return "ERROR:Invalid email receipt format"
	default:
		return fmt.Sprintf("ERROR:%s", pe.Reason)
	}
}

// formatCoord renders a coordinate in its shortest decimal form, keeping
// a trailing .0 on integral values. The shopping UI shows these strings
// verbatim.
func formatCoord(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func renderListing(entries []inventory.Listing) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Name+":"+e.Value)
	}
	return strings.Join(lines, "\n")
}
