// Package outbox buffers drop events and hands them to a sink in batches,
// re-queueing a batch the sink could not take.
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/events"
)

// Sink delivers a batch of drops.
type Sink interface {
	Deliver(ctx context.Context, batch []events.Drop) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch []events.Drop) error

func (f SinkFunc) Deliver(ctx context.Context, batch []events.Drop) error { return f(ctx, batch) }

type Outbox struct {
	sink           Sink
	flushInterval  time.Duration
	flushThreshold int
	bufferMax      int

	mu              sync.Mutex
	buffer          []events.Drop
	consecutiveFail int
	alert           func(msg string)

	done chan struct{}
}

type Config struct {
	FlushInterval  time.Duration
	FlushThreshold int
	BufferMax      int
}

func New(sink Sink, cfg Config) *Outbox {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = 1
	}
	if cfg.BufferMax <= 0 {
		cfg.BufferMax = 500
	}
	return &Outbox{
		sink:           sink,
		flushInterval:  cfg.FlushInterval,
		flushThreshold: cfg.FlushThreshold,
		bufferMax:      cfg.BufferMax,
		buffer:         make([]events.Drop, 0, cfg.FlushThreshold),
		done:           make(chan struct{}),
	}
}

// SetAlerter sets the function told about overflow and repeated delivery failures.
func (o *Outbox) SetAlerter(fn func(msg string)) {
	o.alert = fn
}

// Add enqueues a drop for delivery.
func (o *Outbox) Add(d events.Drop) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Backpressure: drop oldest if buffer full.
	if len(o.buffer) >= o.bufferMax {
		dropped := len(o.buffer) - o.bufferMax + 1
		o.buffer = o.buffer[dropped:]
		slog.Warn("outbox overflow, dropping oldest drops", "dropped", dropped, "buffer_size", o.bufferMax)
		o.raise("drop notification outbox overflow, oldest notifications dropped")
	}

	o.buffer = append(o.buffer, d)

	if len(o.buffer) >= o.flushThreshold {
		go o.flush()
	}
}

// Start begins the periodic flush ticker.
func (o *Outbox) Start(ctx context.Context) {
	ticker := time.NewTicker(o.flushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.flush()
			case <-ctx.Done():
				// Final flush on shutdown.
				o.flush()
				close(o.done)
				return
			}
		}
	}()
}

// Wait blocks until the outbox has completed its final flush.
func (o *Outbox) Wait() {
	<-o.done
}

// BufferLen returns the number of undelivered drops.
func (o *Outbox) BufferLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buffer)
}

func (o *Outbox) flush() {
	o.mu.Lock()
	if len(o.buffer) == 0 {
		o.mu.Unlock()
		return
	}
	batch := o.buffer
	o.buffer = make([]events.Drop, 0, o.flushThreshold)
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.sink.Deliver(ctx, batch); err != nil {
		slog.Error("failed to deliver drops", "error", err, "count", len(batch))
		o.handleFailure(batch)
		return
	}

	o.mu.Lock()
	o.consecutiveFail = 0
	o.mu.Unlock()

	slog.Info("drops delivered", "count", len(batch))
}

func (o *Outbox) handleFailure(batch []events.Drop) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.consecutiveFail++

	// Re-queue the failed batch ahead of newer drops.
	o.buffer = append(batch, o.buffer...)

	if len(o.buffer) > o.bufferMax {
		o.buffer = o.buffer[len(o.buffer)-o.bufferMax:]
	}

	if o.consecutiveFail == 3 {
		slog.Error("3 consecutive delivery failures", "buffer_size", len(o.buffer))
		o.raise("3 consecutive drop notification delivery failures")
	}
}

// raise runs the alerter off the caller's goroutine; callers may hold o.mu.
func (o *Outbox) raise(msg string) {
	if o.alert != nil {
		go o.alert(msg)
	}
}
