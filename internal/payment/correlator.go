// Package payment bridges asynchronous tag-detection events into the
// checkout flow. A checkout opens a bounded wait for a tag; tags arrive
// from the bus checkout topic or from a locally polled reader, duplicates
// inside the debounce window are ignored, and a timed-out wait can still
// be completed by an explicit manual override.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ManualTagID marks a match produced by the manual override path.
const ManualTagID = "MANUAL_CONFIRMATION"

// ErrSessionOpen reports a Begin while a payment wait is already open;
// pipelined sessions are not supported.
var ErrSessionOpen = errors.New("payment session already open")

// State is the correlator's lifecycle state.
type State int

const (
	// Idle means no payment wait is open.
	Idle State = iota
	// AwaitingTag means a checkout is waiting for a tag read.
	AwaitingTag
	// Matched is the transient state while a match is being delivered.
	Matched
)

// Match is a completed payment correlation.
type Match struct {
	TagID  string
	Manual bool
}

// Options tunes the correlator.
type Options struct {
	Timeout      time.Duration // tag wait deadline (default 60s)
	Debounce     time.Duration // duplicate-read window (default 1s)
	PollInterval time.Duration // reader poll period (default 100ms)
}

// Correlator owns the payment state machine. Safe for concurrent use.
type Correlator struct {
	reader TagReader // nil when no local reader is attached
	opts   Options

	mu           sync.Mutex
	state        State
	sessionOpen  bool
	lastAccepted time.Time
	matchCh      chan Match
	stopPolling  context.CancelFunc
}

// New creates a correlator. reader may be nil; matches then come only from
// the bus or the manual override.
func New(reader TagReader, opts Options) *Correlator {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return &Correlator{reader: reader, opts: opts}
}

// State returns the current lifecycle state.
func (c *Correlator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin opens a payment wait and returns the match channel. The channel
// receives at most one Match; it is closed when the session ends without
// one (cancellation). On timeout the wait stays open for the manual
// override, but tag polling stops.
func (c *Correlator) Begin(ctx context.Context) (<-chan Match, error) {
	c.mu.Lock()
	if c.sessionOpen {
		c.mu.Unlock()
		return nil, ErrSessionOpen
	}
	c.sessionOpen = true
	c.state = AwaitingTag
	c.matchCh = make(chan Match, 1)
	matchCh := c.matchCh

	pollCtx, cancel := context.WithCancel(ctx)
	c.stopPolling = cancel
	c.mu.Unlock()

	slog.Info("payment wait opened", "timeout", c.opts.Timeout)
	go c.poll(pollCtx)

	return matchCh, nil
}

// poll drives the local reader until a match, cancellation, or the
// deadline. Reader faults are logged per iteration and polling continues.
func (c *Correlator) poll(ctx context.Context) {
	deadline := time.NewTimer(c.opts.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.opts.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.C:
			c.mu.Lock()
			if c.state == AwaitingTag {
				c.state = Idle // session stays open for the override path
				slog.Info("payment wait timed out, manual confirmation still available")
			}
			c.mu.Unlock()
			return

		case <-tick.C:
			if c.reader == nil {
				continue
			}
			if err := c.reader.Request(); err != nil {
				if !errors.Is(err, ErrNoTag) {
					slog.Warn("reader request failed", "error", err)
				}
				continue
			}
			uid, err := c.reader.Anticoll()
			if err != nil {
				slog.Warn("reader anticoll failed", "error", err)
				continue
			}
			if c.Deliver(formatUID(uid)) {
				return
			}
		}
	}
}

// Deliver offers a tag read to the open session. Reads inside the debounce
// window, or arriving with no wait in progress, are ignored. Returns
// whether the read completed the session.
func (c *Correlator) Deliver(tagID string) bool {
	return c.accept(tagID, false)
}

// ConfirmManual completes an open session without a physical tag. Allowed
// even after the tag wait timed out, as long as the session was neither
// matched nor cancelled.
func (c *Correlator) ConfirmManual() bool {
	return c.accept(ManualTagID, true)
}

// Cancel closes an open session immediately and stops tag polling. The
// match channel is closed without a value.
func (c *Correlator) Cancel() {
	c.mu.Lock()
	if !c.sessionOpen {
		c.mu.Unlock()
		return
	}
	c.sessionOpen = false
	c.state = Idle
	if c.stopPolling != nil {
		c.stopPolling()
		c.stopPolling = nil
	}
	matchCh := c.matchCh
	c.matchCh = nil
	c.mu.Unlock()

	close(matchCh)
	slog.Info("payment wait cancelled")
}

func (c *Correlator) accept(tagID string, manual bool) bool {
	c.mu.Lock()

	if !c.sessionOpen {
		c.mu.Unlock()
		return false
	}
	if !manual {
		if c.state != AwaitingTag {
			// Timed out: only the manual override may complete now.
			c.mu.Unlock()
			return false
		}
		if time.Since(c.lastAccepted) < c.opts.Debounce {
			c.mu.Unlock()
			slog.Debug("ignoring duplicate tag read", "tag", tagID)
			return false
		}
		c.lastAccepted = time.Now()
	}

	c.state = Matched
	c.sessionOpen = false
	if c.stopPolling != nil {
		c.stopPolling()
		c.stopPolling = nil
	}
	matchCh := c.matchCh
	c.matchCh = nil

	matchCh <- Match{TagID: tagID, Manual: manual}
	close(matchCh)
	c.state = Idle
	c.mu.Unlock()

	slog.Info("payment matched", "tag", tagID, "manual", manual)
	return true
}

func formatUID(uid []byte) string {
	out := make([]byte, 0, len(uid)*2)
	for _, octet := range uid {
		out = append(out, fmt.Sprintf("%02X", octet)...)
	}
	return string(out)
}
