// Package detector decides whether a newly observed price is a reportable
// drop against the last price recorded for the same product.
package detector

import (
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

// Verdict is the outcome of comparing a price with its baseline.
type Verdict int

const (
	NoChange Verdict = iota
	Increase
	Drop
)

func (v Verdict) String() string {
	switch v {
	case Increase:
		return "INCREASE"
	case Drop:
		return "DROP"
	default:
		return "NO_CHANGE"
	}
}

// significantRatio marks drops of at least 10%. It only changes how a drop
// is announced; any strictly lower price is a drop.
var significantRatio = decimal.RequireFromString("0.90")

// Result carries the verdict plus the figures used to announce it.
type Result struct {
	ProductID        string
	Verdict          Verdict
	Current          decimal.Decimal
	Baseline         decimal.Decimal
	Percent          int64
	Savings          decimal.Decimal
	Significant      bool
	FirstObservation bool
}

// Evaluate compares current against lastKnown. A zero lastKnown means the
// product has never been recorded, so current becomes its own baseline.
// current must be positive; out-of-stock pages are filtered upstream.
func Evaluate(id string, current, lastKnown decimal.Decimal) Result {
	r := Result{ProductID: id, Current: current, Baseline: lastKnown}

	if !lastKnown.IsPositive() {
		r.Baseline = current
		r.FirstObservation = true
		return r
	}

	switch {
	case current.LessThan(lastKnown):
		r.Verdict = Drop
		r.Percent = pricing.Percent(current, lastKnown)
		r.Savings = lastKnown.Sub(current)
		r.Significant = current.Div(lastKnown).LessThan(significantRatio)
	case current.GreaterThan(lastKnown):
		r.Verdict = Increase
	}
	return r
}
