// tagreaderd polls a card reader and publishes PAYMENT_COMPLETE signals on
// the checkout topic. With -mock it substitutes a keyboard-driven reader so
// the payment flow can be exercised without the peripheral attached.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyberkart/kiosk/internal/config"
	"github.com/cyberkart/kiosk/internal/payment"
	"github.com/cyberkart/kiosk/internal/transport"
	"github.com/cyberkart/kiosk/internal/wire"
)

const defaultConfigPath = "config/tagreaderd.yaml"

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	mock := flag.Bool("mock", false, "Use a keyboard-driven mock reader (press Enter to present a tag)")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting tag reader daemon",
		"config", *configPath,
		"mock", *mock,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var reader payment.TagReader
	if *mock {
		mr := newMockReader()
		go mr.watchStdin(ctx)
		reader = mr
	} else {
		slog.Error("no physical reader driver configured, run with -mock")
		os.Exit(1)
	}

	conn := transport.New(cfg.MQTT.Broker, cfg.InstanceID)
	if err := conn.Connect(ctx); err != nil {
		slog.Error("bus connect failed", "error", err)
		os.Exit(1)
	}
	defer conn.Disconnect()

	runLoop(ctx, conn, reader, cfg)
	slog.Info("tag reader daemon stopped")
}

// runLoop polls the reader and publishes one PAYMENT_COMPLETE per presented
// tag. The debounce window suppresses repeat reads of a card held in the
// field.
func runLoop(ctx context.Context, pub transport.Publisher, reader payment.TagReader, cfg *config.Config) {
	poll := time.NewTicker(time.Duration(cfg.Payment.PollIntervalMS) * time.Millisecond)
	defer poll.Stop()
	debounce := time.Duration(cfg.Payment.DebounceMS) * time.Millisecond

	topic := cfg.MQTT.Topics.Checkout
	qos := cfg.MQTT.QoS["checkout"]

	var lastPublish time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if err := reader.Request(); err != nil {
				if err != payment.ErrNoTag {
					slog.Warn("reader request failed", "error", err)
				}
				continue
			}
			uid, err := reader.Anticoll()
			if err != nil {
				slog.Warn("reader anticoll failed", "error", err)
				continue
			}
			if time.Since(lastPublish) < debounce {
				slog.Debug("duplicate read suppressed")
				continue
			}

			payload := wire.FormatPaymentComplete(uid)
			if err := pub.Publish(topic, qos, []byte(payload)); err != nil {
				slog.Error("publish failed", "topic", topic, "error", err)
				continue
			}
			lastPublish = time.Now()
			slog.Info("payment signal published", "payload", payload)
		}
	}
}

// mockReader presents a random tag each time a line is read from stdin.
type mockReader struct {
	mu      sync.Mutex
	pending []byte
}

func newMockReader() *mockReader {
	return &mockReader{}
}

func (m *mockReader) watchStdin(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		uid := make([]byte, 4)
		if _, err := rand.Read(uid); err != nil {
			slog.Error("uid generation failed", "error", err)
			continue
		}
		m.mu.Lock()
		m.pending = uid
		m.mu.Unlock()
	}
}

func (m *mockReader) Request() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return payment.ErrNoTag
	}
	return nil
}

func (m *mockReader) Anticoll() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := m.pending
	m.pending = nil
	if uid == nil {
		return nil, payment.ErrNoTag
	}
	return uid, nil
}
