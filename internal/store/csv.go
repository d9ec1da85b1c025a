package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

const (
	csvDateLayout = "02/01/2006"
	csvTimeLayout = "15:04:05"
	noArtifact    = "N/A"
)

// Header is the first row of a ledger file. PUBLICATION_KIND is absent from
// files written by older versions.
var Header = []string{"DATE", "TIME", "ID", "TITLE", "OLD_PRICE", "NEW_PRICE", "LINK", "ARTIFACT_REF", "PUBLICATION_KIND"}

// CSVLedger keeps the ledger as a row-oriented file that is only ever
// appended to.
type CSVLedger struct {
	path string
	loc  *time.Location

	mu sync.Mutex
}

func NewCSVLedger(path string, loc *time.Location) *CSVLedger {
	if loc == nil {
		loc = time.Local
	}
	return &CSVLedger{path: path, loc: loc}
}

func (l *CSVLedger) Close() {}

// Append writes rec as one row, creating the file with its header first.
// The row is encoded up front and written with a single call so a failed
// write never leaves half a record behind.
func (l *CSVLedger) Append(_ context.Context, rec ledger.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.New(failure.CodePersistence, "csv.append", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return failure.New(failure.CodePersistence, "csv.append", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write(l.encode(rec))
	w.Flush()
	if err := w.Error(); err != nil {
		return failure.New(failure.CodePersistence, "csv.encode", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return failure.New(failure.CodePersistence, "csv.append", err)
	}
	if err := f.Sync(); err != nil {
		return failure.New(failure.CodePersistence, "csv.sync", err)
	}
	return nil
}

func (l *CSVLedger) LastForID(_ context.Context, id string) (ledger.Record, bool, error) {
	recs, err := l.readAll()
	if err != nil {
		return ledger.Record{}, false, err
	}
	r, ok := ledger.Latest(recs, id)
	return r, ok, nil
}

func (l *CSVLedger) RecordsOn(_ context.Context, day time.Time) ([]ledger.Record, error) {
	recs, err := l.readAll()
	if err != nil {
		return nil, err
	}
	day = day.In(l.loc)
	out := make([]ledger.Record, 0, len(recs))
	for _, r := range recs {
		if ledger.SameDay(day, r.Timestamp) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *CSVLedger) readAll() ([]ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, failure.New(failure.CodePersistence, "csv.read", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var recs []ledger.Record
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, failure.New(failure.CodePersistence, "csv.read", err)
		}
		if line == 1 {
			continue
		}
		rec, err := l.decode(row)
		if err != nil {
			slog.Warn("skipping malformed ledger row", "path", l.path, "line", line, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (l *CSVLedger) encode(rec ledger.Record) []string {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.In(l.loc)

	id := rec.ID
	if id == "" {
		id = ledger.UnknownID
	}
	ref := rec.ArtifactRef
	if ref == "" {
		ref = noArtifact
	}
	return []string{
		ts.Format(csvDateLayout),
		ts.Format(csvTimeLayout),
		id,
		rec.Title,
		pricing.FormatLedger(rec.OldPrice),
		pricing.FormatLedger(rec.NewPrice),
		rec.Link,
		ref,
		string(rec.Kind),
	}
}

func (l *CSVLedger) decode(row []string) (ledger.Record, error) {
	if len(row) < 8 {
		return ledger.Record{}, fmt.Errorf("expected at least 8 columns, got %d", len(row))
	}
	ts, err := time.ParseInLocation(csvDateLayout+" "+csvTimeLayout, row[0]+" "+row[1], l.loc)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("parse timestamp: %w", err)
	}
	rec := ledger.Record{
		ID:        row[2],
		Title:     row[3],
		OldPrice:  pricing.Normalize(row[4]),
		NewPrice:  pricing.Normalize(row[5]),
		Link:      row[6],
		Timestamp: ts,
	}
	if ref := row[7]; ref != noArtifact {
		rec.ArtifactRef = ref
	}
	if len(row) > 8 {
		rec.Kind = ledger.Kind(row[8])
	}
	return rec, nil
}
