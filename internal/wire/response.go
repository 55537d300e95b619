package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorBody reports whether a response body is an ERROR: response and
// returns its message.
func ErrorBody(body string) (string, bool) {
	if !strings.HasPrefix(body, "ERROR:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(body, "ERROR:")), true
}

// ParseItemResponse decodes an "ITEM:<barcode>:<name>:<price>" body.
func ParseItemResponse(body string) (barcode, name, price string, err error) {
	if !strings.HasPrefix(body, "ITEM:") {
		return "", "", "", fmt.Errorf("not an ITEM response: %q", body)
	}
	parts := strings.Split(body, ":")
	if len(parts) < 4 {
		return "", "", "", fmt.Errorf("short ITEM response: %q", body)
	}
	return parts[1], parts[2], parts[3], nil
}

// ParsePinResponse decodes an "ITEM_PINNED:" body. found is false for the
// NOT_FOUND form; on SUCCESS the pinned location is parsed from the
// "Location(<x>,<y>)" suffix.
func ParsePinResponse(body string) (name string, x, y float64, found bool, err error) {
	if !strings.HasPrefix(body, "ITEM_PINNED:") {
		return "", 0, 0, false, fmt.Errorf("not an ITEM_PINNED response: %q", body)
	}
	parts := strings.SplitN(strings.TrimPrefix(body, "ITEM_PINNED:"), ":", 3)
	if len(parts) < 2 {
		return "", 0, 0, false, fmt.Errorf("short ITEM_PINNED response: %q", body)
	}
	name = parts[0]

	switch parts[1] {
	case "NOT_FOUND":
		return name, 0, 0, false, nil
	case "SUCCESS":
		if len(parts) < 3 {
			return "", 0, 0, false, fmt.Errorf("ITEM_PINNED missing location: %q", body)
		}
		loc := strings.TrimSuffix(strings.TrimPrefix(parts[2], "Location("), ")")
		xs, ys, ok := strings.Cut(loc, ",")
		if !ok {
			return "", 0, 0, false, fmt.Errorf("bad pin location: %q", parts[2])
		}
		x, err = strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return "", 0, 0, false, fmt.Errorf("bad pin location x: %w", err)
		}
		y, err = strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return "", 0, 0, false, fmt.Errorf("bad pin location y: %w", err)
		}
		return name, x, y, true, nil
	default:
		return "", 0, 0, false, fmt.Errorf("unknown ITEM_PINNED status %q", parts[1])
	}
}
