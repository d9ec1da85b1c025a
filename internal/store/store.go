package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
)

// Postgres is the pgx-backed ledger.
type Postgres struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS price_records (
	seq          BIGSERIAL PRIMARY KEY,
	recorded_at  TIMESTAMPTZ NOT NULL,
	product_id   TEXT NOT NULL,
	title        TEXT NOT NULL,
	old_price    NUMERIC(12,2) NOT NULL,
	new_price    NUMERIC(12,2) NOT NULL,
	link         TEXT NOT NULL,
	artifact_ref TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS price_records_product_idx ON price_records (product_id, seq DESC);
CREATE INDEX IF NOT EXISTS price_records_recorded_idx ON price_records (recorded_at);
`

func NewPostgres(ctx context.Context, databaseURL string, loc *time.Location) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &Postgres{pool: pool, loc: loc}, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Append(ctx context.Context, rec ledger.Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := rec.ID
	if id == "" {
		id = ledger.UnknownID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_records (recorded_at, product_id, title, old_price, new_price, link, artifact_ref, kind)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
	`, ts, id, rec.Title, rec.OldPrice.StringFixed(2), rec.NewPrice.StringFixed(2), rec.Link, rec.ArtifactRef, string(rec.Kind))
	if err != nil {
		return failure.New(failure.CodePersistence, "postgres.append", err)
	}
	return nil
}

const pgColumns = `recorded_at, product_id, title, old_price::text, new_price::text, link, artifact_ref, kind`

func (s *Postgres) LastForID(ctx context.Context, id string) (ledger.Record, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgColumns+` FROM price_records WHERE product_id = $1 ORDER BY seq DESC LIMIT 1`, id)

	rec, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, failure.New(failure.CodePersistence, "postgres.last", err)
	}
	return rec, true, nil
}

func (s *Postgres) RecordsOn(ctx context.Context, day time.Time) ([]ledger.Record, error) {
	d := day.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM price_records WHERE recorded_at >= $1 AND recorded_at < $2 ORDER BY seq`, start, end)
	if err != nil {
		return nil, failure.New(failure.CodePersistence, "postgres.records", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, failure.New(failure.CodePersistence, "postgres.scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.New(failure.CodePersistence, "postgres.records", err)
	}
	return out, nil
}

func (s *Postgres) scan(row pgx.Row) (ledger.Record, error) {
	var (
		rec        ledger.Record
		oldP, newP string
		kind       string
	)
	if err := row.Scan(&rec.Timestamp, &rec.ID, &rec.Title, &oldP, &newP, &rec.Link, &rec.ArtifactRef, &kind); err != nil {
		return ledger.Record{}, err
	}
	var err error
	if rec.OldPrice, err = decimal.NewFromString(oldP); err != nil {
		return ledger.Record{}, fmt.Errorf("old_price: %w", err)
	}
	if rec.NewPrice, err = decimal.NewFromString(newP); err != nil {
		return ledger.Record{}, fmt.Errorf("new_price: %w", err)
	}
	rec.Kind = ledger.Kind(kind)
	rec.Timestamp = rec.Timestamp.In(s.loc)
	return rec, nil
}
