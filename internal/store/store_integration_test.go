package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

func skipWithoutDB(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PostgresAppendAndQuery(t *testing.T) {
	url := skipWithoutDB(t)
	ctx := context.Background()

	s, err := NewPostgres(ctx, url, time.Local)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(s.Close)

	id := "B0IT" + time.Now().Format("150405")
	now := time.Now()
	if err := s.Append(ctx, rec(id, "50", "50", ledger.KindBaseline, now)); err != nil {
		t.Fatalf("append baseline: %v", err)
	}
	if err := s.Append(ctx, rec(id, "50", "44", ledger.KindMonitorDrop, now.Add(time.Second))); err != nil {
		t.Fatalf("append drop: %v", err)
	}

	last, ok, err := s.LastForID(ctx, id)
	if err != nil || !ok {
		t.Fatalf("last for id: ok=%v err=%v", ok, err)
	}
	if last.Kind != ledger.KindMonitorDrop {
		t.Errorf("expected MONITOR_DROP, got %q", last.Kind)
	}

	today, err := s.RecordsOn(ctx, now)
	if err != nil {
		t.Fatalf("records on: %v", err)
	}
	found := 0
	for _, r := range today {
		if r.ID == id {
			found++
		}
	}
	if found != 2 {
		t.Errorf("expected 2 records for %s today, got %d", id, found)
	}
}
