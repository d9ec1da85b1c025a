package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/detector"
)

func TestNormalize_ValidEvent(t *testing.T) {
	ts := time.Date(2026, 2, 12, 14, 30, 0, 0, time.UTC)
	raw, _ := json.Marshal(map[string]any{
		"event_id":   "abc-123",
		"event_type": "price.drop",
		"product_id": "B0ABCDEFGH",
		"current":    "44.00",
		"previous":   "50.00",
		"percent":    12,
		"savings":    "6.00",
		"timestamp":  ts.Format(time.RFC3339),
	})

	d, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.EventID != "abc-123" {
		t.Errorf("expected event_id abc-123, got %s", d.EventID)
	}
	if d.ProductID != "B0ABCDEFGH" {
		t.Errorf("expected product B0ABCDEFGH, got %s", d.ProductID)
	}
	if !d.Current.Equal(decimal.NewFromInt(44)) {
		t.Errorf("expected current 44, got %s", d.Current)
	}
	if !d.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, d.Timestamp)
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	raw := []byte(`{"product_id":"B0ABCDEFGH","current":"90.5","previous":100}`)

	d, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.EventID) != 36 {
		t.Errorf("expected generated uuid, got %q", d.EventID)
	}
	if d.EventType != TypeDrop {
		t.Errorf("expected default type, got %s", d.EventType)
	}
	if d.Timestamp.IsZero() {
		t.Error("expected receive time to be filled in")
	}
	if d.Percent != 9 {
		t.Errorf("expected floored percent 9, got %d", d.Percent)
	}
	if !d.Savings.Equal(decimal.RequireFromString("9.5")) {
		t.Errorf("expected savings 9.5, got %s", d.Savings)
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	if _, err := Normalize([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestNewDrop_RoundTrip(t *testing.T) {
	r := detector.Evaluate("B0ABCDEFGH", decimal.NewFromInt(44), decimal.NewFromInt(50))
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	d := NewDrop(r, "Friggitrice", "https://www.amazon.it/dp/B0ABCDEFGH?tag=x", at)
	if d.Subject() != "pricewatch.drop.B0ABCDEFGH" {
		t.Errorf("unexpected subject %s", d.Subject())
	}
	if d.Timestamp.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", d.Timestamp.Location())
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.EventID != d.EventID || got.Percent != 12 || !got.Savings.Equal(decimal.NewFromInt(6)) {
		t.Errorf("unexpected decoded event: %+v", got)
	}
	if !got.Significant {
		t.Error("expected a 12% drop to be significant")
	}
}

func TestSubject_Sanitized(t *testing.T) {
	if got := (Drop{ProductID: "a.b c"}).Subject(); got != "pricewatch.drop.a_b_c" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := (Drop{}).Subject(); got != "pricewatch.drop.unknown" {
		t.Errorf("unexpected subject %s", got)
	}
}
