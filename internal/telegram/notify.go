package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
	"github.com/MikeSquared-Agency/pricewatch/internal/events"
	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

// DropText renders the operator notice for a detected drop.
func DropText(d events.Drop) string {
	var b strings.Builder
	if d.Significant {
		b.WriteString("🔔 *🚨 NEW AUTOMATIC PRICE DROP DETECTED!* 🚨\n\n")
	} else {
		b.WriteString("📉 *Price drop detected*\n\n")
	}
	fmt.Fprintf(&b, "*Product:* %s\n", post.EscapeMarkdown(d.Title))
	fmt.Fprintf(&b, "*Current price:* `%s€`\n", pricing.FormatLedger(d.Current))
	fmt.Fprintf(&b, "*Previous price (ledger):* `%s€`\n", pricing.FormatLedger(d.Previous))
	fmt.Fprintf(&b, "📉 *Detected discount:* -%d%% (%s€)\n", d.Percent, pricing.FormatLedger(d.Savings))
	if d.Significant {
		b.WriteString("\n👉 *READY TO PUBLISH:* open `Start new post` from the menu.")
	}
	return b.String()
}

// NotifyDrop sends one drop notice to the operator.
func (c *Client) NotifyDrop(_ context.Context, d events.Drop) error {
	_, err := c.SendText(c.operator, DropText(d), true, nil)
	return err
}

// Deliver notifies the operator of each drop in order. Drops after the
// first failure are not attempted so the batch can be retried whole.
func (c *Client) Deliver(ctx context.Context, batch []events.Drop) error {
	for i, d := range batch {
		if err := c.NotifyDrop(ctx, d); err != nil {
			return fmt.Errorf("notify drop %d/%d (%s): %w", i+1, len(batch), d.ProductID, err)
		}
	}
	return nil
}

// Announce sends a Markdown status line to the operator.
func (c *Client) Announce(_ context.Context, text string) error {
	_, err := c.SendText(c.operator, text, true, nil)
	return err
}

// Notify delivers an incident to the operator. When Markdown parsing fails
// the plain text is sent instead.
func (c *Client) Notify(_ context.Context, inc alerts.Incident) error {
	text := inc.Text()
	_, err := c.SendText(c.operator, text, true, nil)
	if err == nil {
		return nil
	}
	slog.Warn("incident markdown rejected, resending plain", "error", err)
	if _, plainErr := c.SendText(c.operator, text, false, nil); plainErr != nil {
		return errors.Join(err, plainErr)
	}
	return nil
}
