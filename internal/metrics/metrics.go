// Package metrics counts monitor outcomes per local day.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome is what happened to one watched product in a cycle.
type Outcome string

const (
	Checked    Outcome = "checked"
	Baseline   Outcome = "baseline"
	Drop       Outcome = "drop"
	Increase   Outcome = "increase"
	Unchanged  Outcome = "unchanged"
	OutOfStock Outcome = "out_of_stock"
	Extraction Outcome = "extraction_failed"
	Transient  Outcome = "transient_error"
	Blocked    Outcome = "upstream_block"
	Persist    Outcome = "persistence_error"
	Cycle      Outcome = "cycle_completed"
	CycleError Outcome = "cycle_failed"
)

const dayLayout = "2006-01-02"

// Snapshot is one day's counters.
type Snapshot struct {
	Day    string          `json:"day"`
	Counts map[Outcome]int `json:"counts"`
}

// Daily keeps counters for the most recent days.
type Daily struct {
	mu   sync.Mutex
	loc  *time.Location
	keep int
	days map[string]map[Outcome]int
}

// NewDaily keeps counters for the last keep days in loc.
func NewDaily(loc *time.Location, keep int) *Daily {
	if loc == nil {
		loc = time.Local
	}
	if keep < 1 {
		keep = 1
	}
	return &Daily{loc: loc, keep: keep, days: make(map[string]map[Outcome]int)}
}

// Inc counts one outcome at t.
func (d *Daily) Inc(o Outcome, t time.Time) {
	day := t.In(d.loc).Format(dayLayout)

	d.mu.Lock()
	defer d.mu.Unlock()

	counts, ok := d.days[day]
	if !ok {
		counts = make(map[Outcome]int)
		d.days[day] = counts
		d.prune()
	}
	counts[o]++
}

// Day returns a copy of the counters for the day containing t.
func (d *Daily) Day(t time.Time) Snapshot {
	day := t.In(d.loc).Format(dayLayout)

	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{Day: day, Counts: make(map[Outcome]int)}
	for o, n := range d.days[day] {
		s.Counts[o] = n
	}
	return s
}

// prune drops the oldest days beyond keep. Caller holds d.mu.
func (d *Daily) prune() {
	if len(d.days) <= d.keep {
		return
	}
	days := make([]string, 0, len(d.days))
	for k := range d.days {
		days = append(days, k)
	}
	sort.Strings(days)
	for _, k := range days[:len(days)-d.keep] {
		delete(d.days, k)
	}
}
