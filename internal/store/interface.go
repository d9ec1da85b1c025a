package store

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

// Ledger is the append-only record store consumed by the monitor, the bot,
// the digest, and the API. Records come back in append order.
type Ledger interface {
	Append(ctx context.Context, rec ledger.Record) error
	LastForID(ctx context.Context, id string) (ledger.Record, bool, error)
	RecordsOn(ctx context.Context, day time.Time) ([]ledger.Record, error)
	Close()
}
