package server

import (
	"fmt"
	"log/slog"

	"github.com/cyberkart/kiosk/internal/pool"
	"github.com/cyberkart/kiosk/internal/transport"
	"github.com/cyberkart/kiosk/internal/wire"
)

// Router decodes inbound command envelopes, runs one pool task per
// message, and publishes exactly one correlated response per request. The
// router keeps no state between requests; a slow handler delays only its
// own task, never other inbound commands.
type Router struct {
	handlers  *Handlers
	pub       transport.Publisher
	workers   *pool.Pool
	respTopic string
	respQoS   byte
}

// NewRouter wires the router to its executors and response topic.
func NewRouter(handlers *Handlers, pub transport.Publisher, workers *pool.Pool, respTopic string, respQoS byte) *Router {
	return &Router{
		handlers:  handlers,
		pub:       pub,
		workers:   workers,
		respTopic: respTopic,
		respQoS:   respQoS,
	}
}

// Start subscribes to the commands topic.
func (r *Router) Start(sub transport.Subscriber, topic string, qos byte) error {
	slog.Info("subscribing to command plane", "topic", topic, "qos", qos)
	if err := sub.Subscribe(topic, qos, r.onMessage); err != nil {
		return fmt.Errorf("command subscription: %w", err)
	}
	return nil
}

func (r *Router) onMessage(_ string, payload []byte) {
	env := wire.ParseEnvelope(string(payload))
	slog.Info("command received", "client", env.ClientID, "body", env.Body)

	err := r.workers.Submit(func() {
		r.respond(env.ClientID, r.execute(env))
	})
	if err != nil {
		// The response guarantee holds even under overload: answer
		// busy synchronously instead of going silent.
		slog.Warn("command rejected, answering busy", "client", env.ClientID, "error", err)
		r.respond(env.ClientID, "ERROR:server busy")
	}
}

// execute runs the handler, converting a panic into an ERROR: response so
// one bad command never takes down the router.
func (r *Router) execute(env wire.Envelope) (body string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("handler panic", "client", env.ClientID, "command", env.Body, "panic", rec)
			body = fmt.Sprintf("ERROR:%v", rec)
		}
	}()
	return r.handlers.Exec(env.ClientID, env.Body)
}

// respond publishes the response envelope. A failed publish is logged and
// dropped; the caller's own timeout governs any retry.
func (r *Router) respond(clientID, body string) {
	env := wire.Envelope{ClientID: clientID, Body: body}
	if err := r.pub.Publish(r.respTopic, r.respQoS, []byte(env.String())); err != nil {
		slog.Error("response publish failed", "client", clientID, "error", err)
		return
	}
	slog.Debug("response sent", "client", clientID)
}
