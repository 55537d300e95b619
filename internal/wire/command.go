package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is the decoded form of a command body. Exactly one concrete
// variant exists per verb; payloads that fail to decode yield a *ParseError
// from ParseCommand instead of a variant.
type Command interface {
	Verb() string
}

// ParseError reports a command body that matched a verb but not its grammar.
type ParseError struct {
	Verb   string
	Body   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Verb, e.Reason)
}

// Prices requests the full name:price listing.
type Prices struct{}

// Stock requests the full name:quantity listing.
type Stock struct{}

// GetBarcode looks up the barcode for an item name.
type GetBarcode struct {
	Item string
}

// GetItem resolves a barcode to (name, price).
type GetItem struct {
	Barcode string
}

// PinItem pins an item by name, falling back to barcode resolution.
type PinItem struct {
	Name    string
	Barcode string
}

// CheckoutEntry is one identifier:qty line of a checkout batch. The
// identifier may be a barcode or an item name. Malformed entries keep the
// raw field so the handler can fail that line alone.
type CheckoutEntry struct {
	Identifier string
	Qty        int
	Raw        string
	Malformed  bool
}

// Checkout deducts stock for a batch of entries.
type Checkout struct {
	Entries []CheckoutEntry
}

// SetLocation moves an item on the floor map.
type SetLocation struct {
	Item string
	X, Y float64
}

// EmailReceipt mails a generated PDF receipt to a customer.
type EmailReceipt struct {
	Address string
	PDFPath string
}

// Propagate forces a full items_update broadcast.
type Propagate struct{}

// Unknown is returned for any verb the protocol does not define.
type Unknown struct {
	Body string
}

func (Prices) Verb() string       { return "PRICES" }
func (Stock) Verb() string        { return "STOCK" }
func (GetBarcode) Verb() string   { return "GET_BARCODE" }
func (GetItem) Verb() string      { return "GET_ITEM" }
func (PinItem) Verb() string      { return "PIN_ITEM" }
func (Checkout) Verb() string     { return "CHECKOUT" }
func (SetLocation) Verb() string  { return "SET_ITEM_LOCATION" }
func (EmailReceipt) Verb() string { return "EMAIL_RECEIPT" }
func (Propagate) Verb() string    { return "PROPAGATE_ITEMS" }
func (Unknown) Verb() string      { return "UNKNOWN" }

// ParseCommand decodes a command body into its typed variant. Verbs outside
// the protocol decode to Unknown; known verbs with malformed arguments
// return a *ParseError.
func ParseCommand(body string) (Command, error) {
	switch {
	case body == "PRICES":
		return Prices{}, nil

	case body == "STOCK":
		return Stock{}, nil

	case body == "PROPAGATE_ITEMS":
		return Propagate{}, nil

	case strings.HasPrefix(body, "GET_BARCODE:"):
		item := strings.TrimSpace(strings.TrimPrefix(body, "GET_BARCODE:"))
		if item == "" {
			return nil, &ParseError{Verb: "GET_BARCODE", Body: body, Reason: "empty item name"}
		}
		return GetBarcode{Item: item}, nil

	case strings.HasPrefix(body, "GET_ITEM:"):
		code := strings.TrimSpace(strings.TrimPrefix(body, "GET_ITEM:"))
		if code == "" {
			return nil, &ParseError{Verb: "GET_ITEM", Body: body, Reason: "empty barcode"}
		}
		return GetItem{Barcode: code}, nil

	case strings.HasPrefix(body, "PIN_ITEM:"):
		parts := strings.Split(strings.TrimPrefix(body, "PIN_ITEM:"), ":")
		if len(parts) < 2 {
			return nil, &ParseError{Verb: "PIN_ITEM", Body: body, Reason: "want PIN_ITEM:name:barcode"}
		}
		return PinItem{Name: parts[0], Barcode: parts[1]}, nil

	case strings.HasPrefix(body, "CHECKOUT"):
		return parseCheckout(body)

	case strings.HasPrefix(body, "SET_ITEM_LOCATION:"):
		parts := strings.Split(strings.TrimPrefix(body, "SET_ITEM_LOCATION:"), ":")
		if len(parts) != 3 {
			return nil, &ParseError{Verb: "SET_ITEM_LOCATION", Body: body, Reason: "want SET_ITEM_LOCATION:item_name:x:y"}
		}
		x, errX := strconv.ParseFloat(parts[1], 64)
		y, errY := strconv.ParseFloat(parts[2], 64)
		if errX != nil || errY != nil {
			return nil, &ParseError{Verb: "SET_ITEM_LOCATION", Body: body, Reason: "invalid coordinates"}
		}
		return SetLocation{Item: parts[0], X: x, Y: y}, nil

	case strings.HasPrefix(body, "EMAIL_RECEIPT:"):
		parts := strings.SplitN(body, ":", 3)
		if len(parts) < 3 || parts[1] == "" {
			return nil, &ParseError{Verb: "EMAIL_RECEIPT", Body: body, Reason: "want EMAIL_RECEIPT:address:pdf_path"}
		}
		return EmailReceipt{Address: parts[1], PDFPath: parts[2]}, nil

	default:
		return Unknown{Body: body}, nil
	}
}

// parseCheckout decodes "CHECKOUT id1:qty1 id2:qty2 ...". Entries are
// validated individually at execution time; here only the overall shape is
// checked so a bad entry fails its own line, not the batch.
func parseCheckout(body string) (Command, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(body, "CHECKOUT"))
	cmd := Checkout{}
	for _, field := range strings.Fields(rest) {
		id, qtyStr, ok := strings.Cut(field, ":")
		if !ok {
			cmd.Entries = append(cmd.Entries, CheckoutEntry{Raw: field, Malformed: true})
			continue
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			cmd.Entries = append(cmd.Entries, CheckoutEntry{Raw: field, Malformed: true})
			continue
		}
		cmd.Entries = append(cmd.Entries, CheckoutEntry{Identifier: id, Qty: qty, Raw: field})
	}
	return cmd, nil
}
