package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cyberkart/kiosk/internal/transport"
	"github.com/cyberkart/kiosk/internal/wire"
)

// ErrRequestTimeout reports that no response arrived within the wait
// window. The caller may retry; the server never retries responses.
var ErrRequestTimeout = errors.New("request timed out")

// Requester performs correlated request/response exchanges over the bus.
// Correlation is by client id only, so requests are strictly serialized:
// one outstanding request per client at a time, and any response carrying
// our id satisfies the current wait.
type Requester struct {
	pub      transport.Publisher
	clientID string
	topic    string
	qos      byte
	timeout  time.Duration

	reqMu sync.Mutex // serializes whole exchanges

	mu      sync.Mutex
	waiting chan string
}

// NewRequester creates a requester publishing on the commands topic.
func NewRequester(pub transport.Publisher, clientID, topic string, qos byte, timeout time.Duration) *Requester {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Requester{
		pub:      pub,
		clientID: clientID,
		topic:    topic,
		qos:      qos,
		timeout:  timeout,
	}
}

// ClientID returns the correlation id used on the wire.
func (r *Requester) ClientID() string {
	return r.clientID
}

// HandleResponse consumes a responses-topic payload. Responses addressed
// to other clients are ignored; the default id satisfies any waiter.
func (r *Requester) HandleResponse(_ string, payload []byte) {
	env := wire.ParseEnvelope(string(payload))
	if env.ClientID != r.clientID && env.ClientID != wire.DefaultClientID {
		return
	}

	r.mu.Lock()
	waiting := r.waiting
	r.mu.Unlock()
	if waiting == nil {
		slog.Debug("unsolicited response dropped", "client", env.ClientID)
		return
	}

	select {
	case waiting <- env.Body:
	default:
	}
}

// Request publishes a command body and waits for the correlated response.
func (r *Requester) Request(ctx context.Context, body string) (string, error) {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()

	ch := make(chan string, 1)
	r.mu.Lock()
	r.waiting = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.waiting = nil
		r.mu.Unlock()
	}()

	env := wire.Envelope{ClientID: r.clientID, Body: body}
	if err := r.pub.Publish(r.topic, r.qos, []byte(env.String())); err != nil {
		return "", fmt.Errorf("publish command: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(r.timeout):
		return "", ErrRequestTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
