// Package server implements the stock/command server: the inventory
// store's command plane, the item propagation pipeline, and the operator
// console.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberkart/kiosk/internal/config"
	"github.com/cyberkart/kiosk/internal/inventory"
	"github.com/cyberkart/kiosk/internal/pool"
	"github.com/cyberkart/kiosk/internal/receipt"
	"github.com/cyberkart/kiosk/internal/transport"
)

const (
	commandWorkers = 4
	commandQueue   = 32
)

// Server orchestrates the stock daemon's components.
type Server struct {
	cfg *config.Config

	store      *inventory.Store
	conn       *transport.Conn
	workers    *pool.Pool
	propagator *Propagator
	router     *Router
	console    *Console

	mu        sync.Mutex
	started   time.Time
	isRunning bool
}

// New builds a server from configuration, seeding the store.
func New(cfg *config.Config) (*Server, error) {
	store := inventory.New()
	for _, seed := range cfg.Stock.Items {
		price, err := decimal.NewFromString(seed.Price)
		if err != nil {
			return nil, fmt.Errorf("seed item %s: invalid price: %w", seed.Name, err)
		}
		store.Seed(inventory.Item{
			Name:     seed.Name,
			Quantity: seed.Quantity,
			Price:    price,
			Barcode:  seed.Barcode,
			X:        seed.Location[0],
			Y:        seed.Location[1],
		})
	}

	conn := transport.New(cfg.MQTT.Broker, cfg.InstanceID)
	workers := pool.New(commandWorkers, commandQueue)
	propagator := NewPropagator(store, conn, cfg.MQTT.Topics.Items, cfg.MQTT.QoS["items"])

	mailer := &receipt.SMTPMailer{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		From:     cfg.Email.From,
		Password: cfg.Email.Password,
	}

	handlers := NewHandlers(store, propagator, mailer, conn,
		cfg.MQTT.Topics.Pinned, cfg.MQTT.QoS["pinned"], cfg.Email.Subject)
	router := NewRouter(handlers, conn, workers,
		cfg.MQTT.Topics.Responses, cfg.MQTT.QoS["responses"])

	s := &Server{
		cfg:        cfg,
		store:      store,
		conn:       conn,
		workers:    workers,
		propagator: propagator,
		router:     router,
	}
	s.console = NewConsole(store, propagator, os.Stdin, os.Stdout)
	return s, nil
}

// Run connects, starts the command plane and the console, broadcasts the
// initial item set, and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	slog.Info("stock server starting",
		"instance_id", s.cfg.InstanceID,
		"commands_topic", s.cfg.MQTT.Topics.Commands,
		"responses_topic", s.cfg.MQTT.Topics.Responses,
		"items_topic", s.cfg.MQTT.Topics.Items,
	)

	if err := s.conn.Connect(ctx); err != nil {
		return fmt.Errorf("bus connect: %w", err)
	}

	if err := s.router.Start(s.conn, s.cfg.MQTT.Topics.Commands, s.cfg.MQTT.QoS["commands"]); err != nil {
		return err
	}

	// Initial broadcast so clients joining late still get the item set.
	if err := s.propagator.PublishSnapshot(nil); err != nil {
		slog.Warn("initial propagation failed", "error", err)
	}

	go s.console.Run(ctx)

	<-ctx.Done()
	return nil
}

// Shutdown drains in-flight commands and closes the bus connection.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.workers.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timeout while draining commands")
	}

	s.conn.Disconnect()

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("stock server stopped")
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown window.
func (s *Server) ShutdownTimeout() time.Duration {
	return time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
}
