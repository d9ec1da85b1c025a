package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

// SQLite is a single-file ledger on the pure-Go sqlite driver.
type SQLite struct {
	db  *sql.DB
	loc *time.Location
}

func NewSQLite(path string, loc *time.Location) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if loc == nil {
		loc = time.Local
	}
	s := &SQLite{db: db, loc: loc}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS price_records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at  INTEGER NOT NULL,
	product_id   TEXT NOT NULL,
	title        TEXT NOT NULL,
	old_price    TEXT NOT NULL,
	new_price    TEXT NOT NULL,
	link         TEXT NOT NULL,
	artifact_ref TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_price_records_product ON price_records(product_id, seq);
CREATE INDEX IF NOT EXISTS idx_price_records_recorded ON price_records(recorded_at);
`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) Append(ctx context.Context, rec ledger.Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := rec.ID
	if id == "" {
		id = ledger.UnknownID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_records (recorded_at, product_id, title, old_price, new_price, link, artifact_ref, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixNano(), id, rec.Title, rec.OldPrice.StringFixed(2), rec.NewPrice.StringFixed(2), rec.Link, rec.ArtifactRef, string(rec.Kind))
	if err != nil {
		return failure.New(failure.CodePersistence, "sqlite.append", err)
	}
	return nil
}

const sqliteColumns = `recorded_at, product_id, title, old_price, new_price, link, artifact_ref, kind`

func (s *SQLite) LastForID(ctx context.Context, id string) (ledger.Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM price_records WHERE product_id = ? ORDER BY seq DESC LIMIT 1`, id)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, failure.New(failure.CodePersistence, "sqlite.last", err)
	}
	return rec, true, nil
}

func (s *SQLite) RecordsOn(ctx context.Context, day time.Time) ([]ledger.Record, error) {
	d := day.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM price_records WHERE recorded_at >= ? AND recorded_at < ? ORDER BY seq`,
		start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, failure.New(failure.CodePersistence, "sqlite.records", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, failure.New(failure.CodePersistence, "sqlite.scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.New(failure.CodePersistence, "sqlite.records", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scan(row rowScanner) (ledger.Record, error) {
	var (
		rec        ledger.Record
		nanos      int64
		oldP, newP string
		kind       string
	)
	if err := row.Scan(&nanos, &rec.ID, &rec.Title, &oldP, &newP, &rec.Link, &rec.ArtifactRef, &kind); err != nil {
		return ledger.Record{}, err
	}
	rec.Timestamp = time.Unix(0, nanos).In(s.loc)
	var err error
	if rec.OldPrice, err = decimal.NewFromString(oldP); err != nil {
		return ledger.Record{}, fmt.Errorf("old_price %q: %w", oldP, err)
	}
	if rec.NewPrice, err = decimal.NewFromString(newP); err != nil {
		return ledger.Record{}, fmt.Errorf("new_price %q: %w", newP, err)
	}
	rec.Kind = ledger.Kind(kind)
	return rec, nil
}
