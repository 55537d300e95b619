package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePosition decodes a "<x>,<y>" position payload. Payloads with fewer
// than two comma-separated fields, or unparsable floats, are rejected.
// Extra fields beyond the first two are ignored.
func ParsePosition(payload string) (x, y float64, err error) {
	parts := strings.Split(strings.TrimSpace(payload), ",")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("incomplete position payload: %q", payload)
	}
	x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("position x: %w", err)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("position y: %w", err)
	}
	return x, y, nil
}
