// Package events defines the drop event exchanged between the monitor and
// the bot.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/detector"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

const (
	TypeDrop = "price.drop"

	// SubjectPrefix roots every drop subject; the product ID is the last token.
	SubjectPrefix = "pricewatch.drop."
	SubjectAll    = SubjectPrefix + ">"
)

type Drop struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	Source      string          `json:"source"`
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Current     decimal.Decimal `json:"current"`
	Previous    decimal.Decimal `json:"previous"`
	Percent     int64           `json:"percent"`
	Savings     decimal.Decimal `json:"savings"`
	Significant bool            `json:"significant"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewDrop builds the event announcing a detector verdict.
func NewDrop(r detector.Result, title, link string, at time.Time) Drop {
	return Drop{
		EventID:     uuid.New().String(),
		EventType:   TypeDrop,
		Source:      "monitor",
		ProductID:   r.ProductID,
		Title:       title,
		Link:        link,
		Current:     r.Current,
		Previous:    r.Baseline,
		Percent:     r.Percent,
		Savings:     r.Savings,
		Significant: r.Significant,
		Timestamp:   at.UTC(),
	}
}

// Subject is the bus subject the event is published on.
func (d Drop) Subject() string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, d.ProductID)
	if id == "" {
		id = "unknown"
	}
	return SubjectPrefix + id
}

// Normalize fills in missing fields with sensible defaults.
// It never drops an event as long as it decodes.
func Normalize(raw []byte) (Drop, error) {
	var d Drop
	if err := json.Unmarshal(raw, &d); err != nil {
		return Drop{}, fmt.Errorf("decode drop: %w", err)
	}

	if d.EventID == "" {
		d.EventID = uuid.New().String()
	}
	if d.EventType == "" {
		d.EventType = TypeDrop
	}

	if d.Timestamp.IsZero() {
		slog.Warn("drop missing timestamp, using receive time", "event_id", d.EventID)
		d.Timestamp = time.Now().UTC()
	}

	if d.Previous.IsPositive() && d.Current.LessThan(d.Previous) {
		if d.Percent == 0 {
			d.Percent = pricing.Percent(d.Current, d.Previous)
		}
		if d.Savings.IsZero() {
			d.Savings = d.Previous.Sub(d.Current)
		}
	}

	return d, nil
}
