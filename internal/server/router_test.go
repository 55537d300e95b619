package server_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/inventory"
	"github.com/cyberkart/kiosk/internal/pool"
	"github.com/cyberkart/kiosk/internal/server"
	"github.com/cyberkart/kiosk/internal/transport"
)

// fakeSub hands the subscription handler back to the test so inbound
// messages can be injected without a broker.
type fakeSub struct {
	handler transport.Handler
}

func (f *fakeSub) Subscribe(topic string, qos byte, handler transport.Handler) error {
	f.handler = handler
	return nil
}

func newTestRouter(t *testing.T, bus *fakeBus, workers *pool.Pool) *server.Router {
	t.Helper()
	store := inventory.New()
	store.Seed(inventory.Item{Name: "Snack", Quantity: 50, Price: decimal.RequireFromString("20.99"), Barcode: "12434", X: 2.0, Y: 5.0})

	prop := server.NewPropagator(store, bus, "indoor/items", 1)
	handlers := server.NewHandlers(store, prop, &fakeMailer{}, bus, "shopping_app/pinned_items", 1, "subject")
	return server.NewRouter(handlers, bus, workers, "shopping_app/responses", 1)
}

// One inbound command yields exactly one correlated response envelope.
func TestRouterRequestResponse(t *testing.T) {
	bus := &fakeBus{}
	workers := pool.New(2, 8)
	router := newTestRouter(t, bus, workers)

	sub := &fakeSub{}
	if err := router.Start(sub, "shopping_app/commands", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub.handler("shopping_app/commands", []byte("clientA:GET_ITEM:12434"))
	workers.Close() // drain

	responses := bus.onTopic("shopping_app/responses")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].payload != "clientA:ITEM:12434:Snack:20.99" {
		t.Errorf("response = %q", responses[0].payload)
	}
}

// A payload with no client prefix is a command from the default client.
func TestRouterAnonymousCommand(t *testing.T) {
	bus := &fakeBus{}
	workers := pool.New(1, 4)
	router := newTestRouter(t, bus, workers)

	sub := &fakeSub{}
	if err := router.Start(sub, "shopping_app/commands", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub.handler("shopping_app/commands", []byte("STOCK"))
	workers.Close()

	responses := bus.onTopic("shopping_app/responses")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].payload != "default:Snack:50" {
		t.Errorf("response = %q", responses[0].payload)
	}
}

// Overload still produces a response per request: with the worker and
// queue both occupied, inbound commands are answered busy instead of
// being dropped silently.
func TestRouterBusyStillResponds(t *testing.T) {
	bus := &fakeBus{}
	workers := pool.New(1, 1)
	router := newTestRouter(t, bus, workers)

	sub := &fakeSub{}
	if err := router.Start(sub, "shopping_app/commands", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Occupy the single worker, give it time to pick the task up, then
	// fill the one queue slot.
	block := make(chan struct{})
	if err := workers.Submit(func() { <-block }); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := workers.Submit(func() {}); err != nil {
		t.Fatalf("Submit queue filler: %v", err)
	}

	sub.handler("shopping_app/commands", []byte("clientA:PRICES"))
	sub.handler("shopping_app/commands", []byte("clientB:PRICES"))

	responses := bus.onTopic("shopping_app/responses")
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2 busy answers", len(responses))
	}
	if responses[0].payload != "clientA:ERROR:server busy" {
		t.Errorf("response 0 = %q", responses[0].payload)
	}
	if responses[1].payload != "clientB:ERROR:server busy" {
		t.Errorf("response 1 = %q", responses[1].payload)
	}

	close(block)
	workers.Close()

	// The busy answers were the only traffic for the rejected commands.
	if got := len(bus.onTopic("shopping_app/responses")); got != 2 {
		t.Errorf("got %d responses after drain, want 2", got)
	}
}

// Unknown verbs still get a response; silence is never an outcome.
func TestRouterUnknownVerbResponds(t *testing.T) {
	bus := &fakeBus{}
	workers := pool.New(1, 4)
	router := newTestRouter(t, bus, workers)

	sub := &fakeSub{}
	if err := router.Start(sub, "shopping_app/commands", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub.handler("shopping_app/commands", []byte("clientB:FROBNICATE"))
	workers.Close()

	responses := bus.onTopic("shopping_app/responses")
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].payload != "clientB:Unknown command" {
		t.Errorf("response = %q", responses[0].payload)
	}
}
