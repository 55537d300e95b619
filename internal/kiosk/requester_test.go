package kiosk_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyberkart/kiosk/internal/kiosk"
)

// echoBus simulates the round trip through the command server: every
// published command is answered through the wired responder.
type echoBus struct {
	mu        sync.Mutex
	published []string
	respond   func(payload string)
}

func (b *echoBus) Publish(topic string, qos byte, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, string(payload))
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		go respond(string(payload))
	}
	return nil
}

func TestRequestResponseCorrelation(t *testing.T) {
	bus := &echoBus{}
	r := kiosk.NewRequester(bus, "kiosk-1", "shopping_app/commands", 1, time.Second)

	bus.respond = func(string) {
		r.HandleResponse("shopping_app/responses", []byte("kiosk-1:ITEM:12434:Snack:20.99"))
	}

	resp, err := r.Request(context.Background(), "GET_ITEM:12434")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp != "ITEM:12434:Snack:20.99" {
		t.Errorf("response = %q", resp)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.published) != 1 || bus.published[0] != "kiosk-1:GET_ITEM:12434" {
		t.Errorf("published = %v", bus.published)
	}
}

// Responses addressed to other clients must not satisfy our wait.
func TestRequestIgnoresForeignResponses(t *testing.T) {
	bus := &echoBus{}
	r := kiosk.NewRequester(bus, "kiosk-1", "shopping_app/commands", 1, time.Second)

	bus.respond = func(string) {
		r.HandleResponse("t", []byte("kiosk-2:ITEM:0:Wrong:0"))
		r.HandleResponse("t", []byte("kiosk-1:ITEM:12434:Snack:20.99"))
	}

	resp, err := r.Request(context.Background(), "GET_ITEM:12434")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp != "ITEM:12434:Snack:20.99" {
		t.Errorf("response = %q", resp)
	}
}

// The default-addressed response satisfies any waiter.
func TestRequestAcceptsDefaultAddressed(t *testing.T) {
	bus := &echoBus{}
	r := kiosk.NewRequester(bus, "kiosk-1", "shopping_app/commands", 1, time.Second)

	bus.respond = func(string) {
		r.HandleResponse("t", []byte("default:Unknown command"))
	}

	resp, err := r.Request(context.Background(), "whatever")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp != "Unknown command" {
		t.Errorf("response = %q", resp)
	}
}

func TestRequestTimeout(t *testing.T) {
	bus := &echoBus{} // never responds
	r := kiosk.NewRequester(bus, "kiosk-1", "shopping_app/commands", 1, 30*time.Millisecond)

	_, err := r.Request(context.Background(), "GET_ITEM:12434")
	if !errors.Is(err, kiosk.ErrRequestTimeout) {
		t.Errorf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestRequestContextCancel(t *testing.T) {
	bus := &echoBus{}
	r := kiosk.NewRequester(bus, "kiosk-1", "shopping_app/commands", 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Request(ctx, "STOCK")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// Late responses with no wait in progress are dropped quietly.
func TestHandleResponseUnsolicited(t *testing.T) {
	r := kiosk.NewRequester(&echoBus{}, "kiosk-1", "shopping_app/commands", 1, time.Second)
	r.HandleResponse("t", []byte("kiosk-1:stale"))
}
