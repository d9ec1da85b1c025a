// Package digest ranks the day's price drops into the channel roundup.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
	"github.com/MikeSquared-Agency/pricewatch/internal/store"
)

const (
	// MaxEntries caps both the ranked list and the collage photos.
	MaxEntries = 5
	// MaxText leaves room for the truncation marker under the caption limit.
	MaxText = 980

	NoOffers  = "⚠️ No price drops found in the ledger today."
	truncated = "\n\n[...] *Digest truncated for Telegram's limit.*"
)

// Entry is one ranked drop.
type Entry struct {
	ID       string
	Title    string
	Old      decimal.Decimal
	New      decimal.Decimal
	Link     string
	Percent  int64
	Position int
}

// Rank keeps the day's discounted records with a real identifier, one per
// identifier, and returns the top MaxEntries by percent. An identifier keeps
// the position of its first record and the values of its last. Equal
// percents keep ledger order.
func Rank(recs []ledger.Record, day time.Time) []Entry {
	byID := make(map[string]int)
	var entries []Entry
	for _, r := range recs {
		if !ledger.SameDay(day, r.Timestamp) || !r.HasID() || !r.Discounted() {
			continue
		}
		e := Entry{
			ID:      r.ID,
			Title:   r.Title,
			Old:     r.OldPrice,
			New:     r.NewPrice,
			Link:    r.Link,
			Percent: pricing.Percent(r.NewPrice, r.OldPrice),
		}
		if i, ok := byID[r.ID]; ok {
			e.Position = entries[i].Position
			entries[i] = e
			continue
		}
		e.Position = len(entries)
		byID[r.ID] = len(entries)
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Percent > entries[j].Percent
	})
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}

// Render formats ranked entries as a legacy Markdown caption.
func Render(entries []Entry, links catalog.Links) string {
	if len(entries) == 0 {
		return NoOffers
	}
	var b strings.Builder
	b.WriteString("👀 *Here is today's roundup of the best offers!*\n\n")
	for _, e := range entries {
		title, _, _ := strings.Cut(e.Title, "(")
		fmt.Fprintf(&b, "🚨 *%s*\n", post.EscapeMarkdown(strings.TrimSpace(title)))
		fmt.Fprintf(&b, "💰 *%s* _instead of %s_\n", pricing.Display(e.New), pricing.Display(e.Old))
		fmt.Fprintf(&b, "🔍 [Product link](%s)\n\n", links.Shorten(e.Link))
	}
	b.WriteString("🔗 *All links are affiliate links.*\n")
	return post.Truncate(b.String(), MaxText, MaxText, truncated)
}

// ArtifactRefs lists up to MaxEntries distinct photo references of the day's
// drops, most recent first.
func ArtifactRefs(recs []ledger.Record, day time.Time) []string {
	seen := make(map[string]bool)
	var refs []string
	for i := len(recs) - 1; i >= 0 && len(refs) < MaxEntries; i-- {
		r := recs[i]
		if r.ArtifactRef == "" || seen[r.ArtifactRef] || !ledger.SameDay(day, r.Timestamp) || !r.Discounted() {
			continue
		}
		seen[r.ArtifactRef] = true
		refs = append(refs, r.ArtifactRef)
	}
	return refs
}

// Digest is a built roundup.
type Digest struct {
	Day     time.Time
	Entries []Entry
	Text    string
	Photos  []string
}

func (d Digest) Empty() bool { return len(d.Entries) == 0 }

// Aggregator builds digests from the ledger.
type Aggregator struct {
	ledger store.Ledger
	links  catalog.Links
	now    func() time.Time
}

func NewAggregator(l store.Ledger, links catalog.Links) *Aggregator {
	return &Aggregator{ledger: l, links: links, now: time.Now}
}

// In makes "today" follow loc's calendar.
func (a *Aggregator) In(loc *time.Location) *Aggregator {
	a.now = func() time.Time { return time.Now().In(loc) }
	return a
}

// Build reads today's records once and derives the ranking, text and photos
// from the same snapshot.
func (a *Aggregator) Build(ctx context.Context) (Digest, error) {
	day := a.now()
	recs, err := a.ledger.RecordsOn(ctx, day)
	if err != nil {
		return Digest{}, fmt.Errorf("read ledger: %w", err)
	}
	entries := Rank(recs, day)
	return Digest{
		Day:     day,
		Entries: entries,
		Text:    Render(entries, a.links),
		Photos:  ArtifactRefs(recs, day),
	}, nil
}
