// Package ledger defines the append-only price record shared by the monitor,
// the conversational bot, and the daily digest.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells which workflow appended a record.
type Kind string

const (
	KindBaseline    Kind = "BASELINE"
	KindMonitorDrop Kind = "MONITOR_DROP"
	KindManualPost  Kind = "MANUAL_POST"
	// KindLegacy marks rows written before the kind column existed; those
	// were all manual publications.
	KindLegacy Kind = ""
)

// UnknownID is stored when a post was built from a link without a product
// identifier.
const UnknownID = "N/A"

// IsPublication reports whether records of this kind were posted to the channel.
func (k Kind) IsPublication() bool {
	return k == KindManualPost || k == KindLegacy
}

// Record is one immutable ledger row.
type Record struct {
	ID          string
	Title       string
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	Link        string
	ArtifactRef string
	Kind        Kind
	Timestamp   time.Time
}

// Discounted reports whether the record shows a real price cut.
func (r Record) Discounted() bool {
	return r.NewPrice.IsPositive() && r.OldPrice.GreaterThan(r.NewPrice)
}

// HasID reports whether the record names a concrete product.
func (r Record) HasID() bool {
	return r.ID != "" && r.ID != UnknownID
}

// SameDay compares calendar dates in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Latest returns the most recently appended record for id. recs must be in
// append order.
func Latest(recs []Record, id string) (Record, bool) {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].ID == id {
			return recs[i], true
		}
	}
	return Record{}, false
}

// PublishedOn reports whether id was posted to the channel on day.
func PublishedOn(recs []Record, id string, day time.Time) bool {
	if id == "" || id == UnknownID {
		return false
	}
	for _, r := range recs {
		if r.ID == id && r.Kind.IsPublication() && SameDay(day, r.Timestamp) {
			return true
		}
	}
	return false
}
