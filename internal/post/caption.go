// Package post renders the text parts of a channel post: caption, reviews
// line, and link buttons.
package post

import (
	"fmt"
	"strings"
)

// MaxCaption is the channel's caption limit, counted in characters.
const MaxCaption = 1024

const captionTruncated = "\n\n[...] *Caption truncated*"

// Extras are the optional badges attached to a post.
type Extras struct {
	Prime         bool
	TimeLimited   bool
	EditorialPick bool
	FastSale      bool
	Coupon        string
}

// Content is everything the caption is built from.
type Content struct {
	Title         string
	Description   string
	Reviews       string
	Extras        Extras
	DisclaimerURL string
}

// Caption composes the post caption in legacy Markdown.
func Caption(c Content) string {
	var b strings.Builder

	b.WriteString(Bold(Emoji(c.Title) + " " + c.Title))
	b.WriteString("\n\n")
	if c.Description != "" {
		b.WriteString(EscapeMarkdown(c.Description))
		b.WriteString("\n\n")
	}
	b.WriteString("ℹ️ _Details on Amazon._\n\n")

	x := c.Extras
	if x.TimeLimited {
		b.WriteString("⏳ *TIME-LIMITED OFFER*\n")
	}
	if x.EditorialPick {
		b.WriteString("⭐ *AMAZON'S CHOICE*\n")
	}
	if x.Coupon != "" {
		b.WriteString("✂️ " + Bold("COUPON AVAILABLE: "+x.Coupon) + "\n")
	}
	if x.FastSale {
		b.WriteString("🔥 *FAST-SELLING OFFER*\n")
	}
	b.WriteString("🚚 _Sold and shipped by Amazon_\n")
	if x.Prime {
		b.WriteString("✅ _Prime shipping_\n")
	}

	b.WriteString(strings.Repeat("➖", 10))
	b.WriteString("\n")
	if c.Reviews != "" {
		b.WriteString(EscapeMarkdown(c.Reviews))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nℹ️ [Disclaimer & Info](%s)", c.DisclaimerURL)

	return Truncate(b.String(), MaxCaption-30, MaxCaption, captionTruncated)
}

// Truncate cuts s to keep characters when it is longer than limit and
// appends marker.
func Truncate(s string, keep, limit int, marker string) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if keep > len(r) {
		keep = len(r)
	}
	return string(r[:keep]) + marker
}
