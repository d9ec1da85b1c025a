package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/MikeSquared-Agency/pricewatch/internal/events"
)

type fakeMsg struct {
	subject string
	data    []byte
	acked   bool
	naked   bool
}

func (m *fakeMsg) Data() []byte                        { return m.data }
func (m *fakeMsg) Subject() string                     { return m.subject }
func (m *fakeMsg) Ack() error                          { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                          { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(d time.Duration) error  { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error                   { return nil }
func (m *fakeMsg) Term() error                         { return nil }
func (m *fakeMsg) TermWithReason(reason string) error  { return nil }
func (m *fakeMsg) Headers() nats.Header                { return nil }
func (m *fakeMsg) Reply() string                       { return "" }
func (m *fakeMsg) DoubleAck(ctx context.Context) error { return nil }
func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return nil, nil
}

func newTestBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{ctx: ctx, cancel: cancel}
}

const payload = `{"event_id":"e-1","product_id":"B0ABCDEFGH","current":"44.00","previous":"50.00","timestamp":"2024-03-05T09:00:00Z"}`

func TestHandleMessage_AcksAfterHandler(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var got string
	msg := &fakeMsg{subject: "pricewatch.drop.B0ABCDEFGH", data: []byte(payload)}
	b.handleMessage(msg, func(_ context.Context, d events.Drop) error {
		got = d.ProductID
		if d.Percent != 12 {
			t.Errorf("expected normalized percent 12, got %d", d.Percent)
		}
		return nil
	})

	if got != "B0ABCDEFGH" {
		t.Errorf("expected handler to see B0ABCDEFGH, got %q", got)
	}
	if !msg.acked || msg.naked {
		t.Errorf("expected ack only, got acked=%v naked=%v", msg.acked, msg.naked)
	}
}

func TestHandleMessage_NaksOnHandlerError(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	msg := &fakeMsg{subject: "pricewatch.drop.B0ABCDEFGH", data: []byte(payload)}
	b.handleMessage(msg, func(context.Context, events.Drop) error { return errors.New("telegram down") })

	if msg.acked || !msg.naked {
		t.Errorf("expected nak only, got acked=%v naked=%v", msg.acked, msg.naked)
	}
}

func TestHandleMessage_MalformedIsAckedAndSkipped(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	called := false
	msg := &fakeMsg{subject: "pricewatch.drop.x", data: []byte(`{broken`)}
	b.handleMessage(msg, func(context.Context, events.Drop) error { called = true; return nil })

	if called {
		t.Error("handler must not run for malformed payloads")
	}
	if !msg.acked {
		t.Error("expected malformed message to be acked")
	}
}
