package wire

import (
	"fmt"
	"strings"
)

const paymentCompletePrefix = "PAYMENT_COMPLETE:"

// FormatPaymentComplete renders the checkout-topic payload for a tag read.
func FormatPaymentComplete(uid []byte) string {
	var b strings.Builder
	b.WriteString(paymentCompletePrefix)
	for _, octet := range uid {
		fmt.Fprintf(&b, "%02X", octet)
	}
	return b.String()
}

// ParsePaymentComplete extracts the tag id from a checkout-topic payload.
// The second return is false when the payload is not a payment signal.
func ParsePaymentComplete(payload string) (string, bool) {
	if !strings.HasPrefix(payload, paymentCompletePrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(payload, paymentCompletePrefix)), true
}
