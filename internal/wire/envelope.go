package wire

import "strings"

// DefaultClientID is assumed when a command payload carries no client prefix.
const DefaultClientID = "default"

// Envelope correlates a request or response with its originating client.
// The wire form is "client_id:body"; a bare body implies the default client.
type Envelope struct {
	ClientID string
	Body     string
}

// ParseEnvelope splits a payload on the first colon. Payloads without a
// colon are treated as anonymous commands from the default client.
func ParseEnvelope(payload string) Envelope {
	if id, body, ok := strings.Cut(payload, ":"); ok {
		return Envelope{ClientID: id, Body: body}
	}
	return Envelope{ClientID: DefaultClientID, Body: payload}
}

// String renders the envelope in wire form.
func (e Envelope) String() string {
	return e.ClientID + ":" + e.Body
}
