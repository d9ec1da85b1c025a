package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Class is the discount category of an old/new price pair.
type Class string

const (
	ClassPercentDrop Class = "PERCENT_DROP"
	ClassFlat        Class = "FLAT"
	ClassIncrease    Class = "INCREASE"
)

// Discount describes how a post presents its prices.
type Discount struct {
	Class           Class
	Percent         int64
	Savings         decimal.Decimal
	CouponAvailable bool
}

// Classify computes the discount shown on a post. A zero oldPrice means the
// operator has no reference price; a coupon then becomes the selling point.
func Classify(oldPrice, newPrice decimal.Decimal, coupon string) Discount {
	switch {
	case oldPrice.GreaterThan(newPrice):
		return Discount{
			Class:   ClassPercentDrop,
			Percent: Percent(newPrice, oldPrice),
			Savings: oldPrice.Sub(newPrice),
		}
	case oldPrice.Equal(newPrice) || oldPrice.IsZero():
		return Discount{Class: ClassFlat, CouponAvailable: coupon != ""}
	default:
		return Discount{Class: ClassIncrease}
	}
}

// Badge is the large discount label printed on the card. The coupon code
// replaces the label for flat prices.
func (d Discount) Badge(coupon string) string {
	switch d.Class {
	case ClassPercentDrop:
		return fmt.Sprintf("-%d%%", d.Percent)
	case ClassFlat:
		if d.CouponAvailable {
			return coupon
		}
	}
	return ""
}

// SavingsLine is the headline printed above the card.
func (d Discount) SavingsLine() string {
	switch {
	case d.CouponAvailable:
		return "COUPON AVAILABLE"
	case d.Class == ClassPercentDrop:
		return "YOU SAVE: " + Display(d.Savings)
	case d.Class == ClassIncrease:
		return "Price increased"
	default:
		return "No savings"
	}
}

// Summary is the operator-facing description of the discount.
func (d Discount) Summary() string {
	switch {
	case d.Class == ClassPercentDrop:
		return fmt.Sprintf("📉 Discount: -%d%% (you save %s)", d.Percent, Display(d.Savings))
	case d.CouponAvailable:
		return "🎫 Coupon available"
	case d.Class == ClassIncrease:
		return "⚠️ Price increased: the post can still be published"
	default:
		return "ℹ️ No savings"
	}
}
