// Package bus carries drop events from the monitor process to the bot over
// NATS JetStream.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/MikeSquared-Agency/pricewatch/internal/events"
)

// StreamName is the JetStream stream holding drop events.
const StreamName = "PRICEWATCH_DROPS"

// Handler processes one drop. A returned error asks for redelivery.
type Handler func(ctx context.Context, d events.Drop) error

type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	subs   []jetstream.ConsumeContext
	ctx    context.Context
	cancel context.CancelFunc
}

func Connect(natsURL string) (*Bus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("pricewatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	bctx, bcancel := context.WithCancel(context.Background())
	return &Bus{nc: nc, js: js, ctx: bctx, cancel: bcancel}, nil
}

// EnsureStream creates the drop stream when it does not exist yet.
func (b *Bus) EnsureStream(ctx context.Context) error {
	if _, err := b.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := b.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{events.SubjectAll},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    jetstream.FileStorage,
		Replicas:   1,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	slog.Info("created stream", "name", StreamName, "subjects", events.SubjectAll)
	return nil
}

// Deliver publishes a batch of drops. The event ID is the message ID, so a
// batch re-sent after a partial failure is deduplicated by the server.
func (b *Bus) Deliver(ctx context.Context, batch []events.Drop) error {
	for _, d := range batch {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal drop %s: %w", d.EventID, err)
		}
		if _, err := b.js.Publish(ctx, d.Subject(), data, jetstream.WithMsgID(d.EventID)); err != nil {
			return fmt.Errorf("publish %s: %w", d.Subject(), err)
		}
	}
	return nil
}

// Consume binds a durable consumer and feeds every drop to h.
func (b *Bus) Consume(ctx context.Context, consumerName string, h Handler) error {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		b.handleMessage(msg, h)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	b.subs = append(b.subs, cc)
	slog.Info("subscribed to stream", "stream", StreamName, "consumer", consumerName)
	return nil
}

func (b *Bus) handleMessage(msg jetstream.Msg, h Handler) {
	d, err := events.Normalize(msg.Data())
	if err != nil {
		slog.Warn("malformed drop, skipping", "subject", msg.Subject(), "error", err)
		// Ack to avoid redelivery of permanently broken messages.
		_ = msg.Ack()
		return
	}

	if err := h(b.ctx, d); err != nil {
		slog.Warn("drop handler failed, requesting redelivery", "event_id", d.EventID, "error", err)
		_ = msg.NakWithDelay(10 * time.Second)
		return
	}

	if err := msg.Ack(); err != nil {
		slog.Warn("failed to ack message", "subject", msg.Subject(), "error", err)
	}
}

// Close stops consumers and drains the connection.
func (b *Bus) Close() {
	b.cancel()
	for _, cc := range b.subs {
		cc.Stop()
	}
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
