// Package kiosk implements the touchscreen client's non-UI core: the bus
// subscriptions, the request/response client, the cart, and the wiring
// between the position reconciler and the payment correlator. The
// rendering surface consumes the reconciler's event stream.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/config"
	"github.com/cyberkart/kiosk/internal/payment"
	"github.com/cyberkart/kiosk/internal/receipt"
	"github.com/cyberkart/kiosk/internal/track"
	"github.com/cyberkart/kiosk/internal/transport"
	"github.com/cyberkart/kiosk/internal/wire"
)

// ErrItemNotFound reports a scan or pin against an unknown item.
var ErrItemNotFound = errors.New("item not found")

// Kiosk orchestrates the client daemon.
type Kiosk struct {
	cfg *config.Config

	conn       *transport.Conn
	requester  *Requester
	cart       *Cart
	reconciler *track.Reconciler
	correlator *payment.Correlator
	generator  receipt.Generator

	mu        sync.Mutex
	isRunning bool
}

// New builds a kiosk from configuration. reader may be nil when no local
// card reader is attached; payments then arrive via the bus or the manual
// override.
func New(cfg *config.Config, reader payment.TagReader) *Kiosk {
	clientID := cfg.InstanceID + "-" + uuid.NewString()[:8]
	conn := transport.New(cfg.MQTT.Broker, clientID)

	requester := NewRequester(conn, clientID,
		cfg.MQTT.Topics.Commands, cfg.MQTT.QoS["commands"],
		time.Duration(cfg.Payment.RequestTimeoutS)*time.Second)

	reconciler := track.New(track.Options{
		ProximityThreshold: cfg.Track.ProximityThreshold,
		ForbiddenRadius:    cfg.Track.ForbiddenRadius,
		ForbiddenPositions: cfg.Track.ForbiddenPositions,
		TargetPeriod:       time.Duration(cfg.Track.TargetPeriodMS) * time.Millisecond,
		ProximityPeriod:    time.Duration(cfg.Track.ProximityPeriodMS) * time.Millisecond,
		StartX:             0.5,
		StartY:             0.5,
	})

	correlator := payment.New(reader, payment.Options{
		Timeout:      time.Duration(cfg.Payment.TimeoutS) * time.Second,
		Debounce:     time.Duration(cfg.Payment.DebounceMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.Payment.PollIntervalMS) * time.Millisecond,
	})

	return &Kiosk{
		cfg:        cfg,
		conn:       conn,
		requester:  requester,
		cart:       NewCart(),
		reconciler: reconciler,
		correlator: correlator,
		generator:  &receipt.TextGenerator{},
	}
}

// UseGenerator attaches a receipt generator, replacing the plain-text
// fallback. Call before Run.
func (k *Kiosk) UseGenerator(g receipt.Generator) {
	k.generator = g
}

// Reconciler exposes the tracking state for the rendering surface.
func (k *Kiosk) Reconciler() *track.Reconciler {
	return k.reconciler
}

// Cart exposes the shopping cart.
func (k *Kiosk) Cart() *Cart {
	return k.cart
}

// Run connects, wires every subscription, starts the reconciler loop and
// blocks until the context is cancelled.
func (k *Kiosk) Run(ctx context.Context) error {
	k.mu.Lock()
	if k.isRunning {
		k.mu.Unlock()
		return fmt.Errorf("kiosk is already running")
	}
	k.isRunning = true
	k.mu.Unlock()

	slog.Info("kiosk starting",
		"client_id", k.requester.ClientID(),
		"broker", k.cfg.MQTT.Broker,
	)

	if err := k.conn.Connect(ctx); err != nil {
		return fmt.Errorf("bus connect: %w", err)
	}

	topics := k.cfg.MQTT.Topics
	qos := k.cfg.MQTT.QoS

	subs := []struct {
		topic   string
		qos     byte
		handler transport.Handler
	}{
		{topics.Responses, qos["responses"], k.requester.HandleResponse},
		{topics.Position, qos["position"], k.onPosition},
		{topics.Items, qos["items"], k.onItems},
		{topics.Checkout, qos["checkout"], k.onCheckoutSignal},
		{topics.Pinned, qos["pinned"], k.onPinnedBroadcast},
	}
	for _, s := range subs {
		if err := k.conn.Subscribe(s.topic, s.qos, s.handler); err != nil {
			return err
		}
	}

	go k.reconciler.Run(ctx)

	<-ctx.Done()
	return nil
}

// Shutdown closes the bus connection.
func (k *Kiosk) Shutdown(ctx context.Context) error {
	k.correlator.Cancel()
	k.conn.Disconnect()

	k.mu.Lock()
	k.isRunning = false
	k.mu.Unlock()

	slog.Info("kiosk stopped")
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown window.
func (k *Kiosk) ShutdownTimeout() time.Duration {
	return time.Duration(k.cfg.ShutdownTimeoutS) * time.Second
}

func (k *Kiosk) onPosition(_ string, payload []byte) {
	x, y, err := wire.ParsePosition(string(payload))
	if err != nil {
		slog.Warn("bad position payload", "error", err)
		return
	}
	k.reconciler.UpdatePosition(x, y)
}

func (k *Kiosk) onItems(_ string, payload []byte) {
	items, err := wire.DecodeItemsUpdate(payload)
	if err != nil {
		slog.Warn("bad items payload", "error", err)
		return
	}
	k.reconciler.ApplyItemsUpdate(items)
}

func (k *Kiosk) onCheckoutSignal(_ string, payload []byte) {
	tagID, ok := wire.ParsePaymentComplete(string(payload))
	if !ok {
		return
	}
	if k.correlator.Deliver(tagID) {
		slog.Info("payment completed via bus", "tag", tagID)
	}
}

func (k *Kiosk) onPinnedBroadcast(_ string, payload []byte) {
	pb, err := wire.DecodePinnedBroadcast(payload)
	if err != nil {
		slog.Warn("bad pinned payload", "error", err)
		return
	}
	// Remote pins mirror onto this kiosk too; a duplicate means we
	// already show the marker.
	if err := k.reconciler.Pin(pb.ItemName, pb.Location[0], pb.Location[1]); err != nil {
		slog.Debug("remote pin ignored", "item", pb.ItemName, "reason", err)
	}
}

// Scan resolves a barcode through the server and adds the product to the
// cart.
func (k *Kiosk) Scan(ctx context.Context, barcode string) (CartLine, error) {
	resp, err := k.requester.Request(ctx, "GET_ITEM:"+barcode)
	if err != nil {
		return CartLine{}, err
	}
	if msg, isErr := wire.ErrorBody(resp); isErr {
		return CartLine{}, fmt.Errorf("%w: %s", ErrItemNotFound, msg)
	}

	code, name, priceStr, err := wire.ParseItemResponse(resp)
	if err != nil {
		return CartLine{}, err
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return CartLine{}, fmt.Errorf("bad price in response: %w", err)
	}

	k.cart.Add(code, name, price)
	return CartLine{Barcode: code, Name: name, Price: price, Quantity: 1}, nil
}

// PinItem asks the server to pin an item and mirrors the marker locally.
// A barcode of "N/A" pins by name only.
func (k *Kiosk) PinItem(ctx context.Context, name, barcode string) error {
	if k.reconciler.IsPinned(name) {
		return track.ErrAlreadyPinned
	}

	resp, err := k.requester.Request(ctx, fmt.Sprintf("PIN_ITEM:%s:%s", name, barcode))
	if err != nil {
		return err
	}
	if msg, isErr := wire.ErrorBody(resp); isErr {
		return fmt.Errorf("pin rejected: %s", msg)
	}

	pinnedName, x, y, found, err := wire.ParsePinResponse(resp)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrItemNotFound, pinnedName)
	}

	return k.reconciler.Pin(pinnedName, x, y)
}

// BeginPayment opens the payment wait for the current cart.
func (k *Kiosk) BeginPayment(ctx context.Context) (<-chan payment.Match, error) {
	if k.cart.Empty() {
		return nil, errors.New("cart is empty")
	}
	return k.correlator.Begin(ctx)
}

// ConfirmManual completes an open payment wait without a tag.
func (k *Kiosk) ConfirmManual() bool {
	return k.correlator.ConfirmManual()
}

// CancelPayment aborts an open payment wait.
func (k *Kiosk) CancelPayment() {
	k.correlator.Cancel()
}

// CompleteCheckout sends the CHECKOUT batch for the cart after a payment
// match and clears the cart on success. Returns the server's per-line
// response.
func (k *Kiosk) CompleteCheckout(ctx context.Context, m payment.Match) (string, error) {
	resp, err := k.requester.Request(ctx, k.cart.CheckoutBody())
	if err != nil {
		return "", fmt.Errorf("checkout request: %w", err)
	}

	slog.Info("checkout complete",
		"tag", m.TagID,
		"manual", m.Manual,
		"total", k.cart.Total().StringFixed(2),
	)
	k.cart.Clear()
	return resp, nil
}

// Product is one catalog entry assembled from the server listings.
type Product struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// FetchProducts builds the product catalog by joining the PRICES and
// STOCK listings on item name. Lines that fail to parse are skipped.
func (k *Kiosk) FetchProducts(ctx context.Context) ([]Product, error) {
	pricesResp, err := k.requester.Request(ctx, "PRICES")
	if err != nil {
		return nil, fmt.Errorf("prices request: %w", err)
	}
	stockResp, err := k.requester.Request(ctx, "STOCK")
	if err != nil {
		return nil, fmt.Errorf("stock request: %w", err)
	}

	quantities := make(map[string]int)
	for _, line := range strings.Split(stockResp, "\n") {
		name, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			continue
		}
		quantities[name] = qty
	}

	var products []Product
	for _, line := range strings.Split(pricesResp, "\n") {
		name, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			continue
		}
		products = append(products, Product{
			Name:     name,
			Price:    price,
			Quantity: quantities[name],
		})
	}
	return products, nil
}

// GenerateReceipt renders the current cart through the receipt
// collaborator and returns the file path, ready for EmailReceipt.
// Call before CompleteCheckout clears the cart.
func (k *Kiosk) GenerateReceipt() (string, error) {
	return k.generator.Generate(k.cart.ReceiptLines(), k.cart.Total().StringFixed(2))
}

// EmailReceipt asks the server to mail a generated receipt.
func (k *Kiosk) EmailReceipt(ctx context.Context, address, pdfPath string) error {
	resp, err := k.requester.Request(ctx, fmt.Sprintf("EMAIL_RECEIPT:%s:%s", address, pdfPath))
	if err != nil {
		return err
	}
	if msg, isErr := wire.ErrorBody(resp); isErr {
		return errors.New(msg)
	}
	return nil
}
