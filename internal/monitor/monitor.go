// Package monitor runs the price watch loop: fetch every watched product,
// compare with the last recorded price, record baselines and drops, and
// announce drops.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
	"github.com/MikeSquared-Agency/pricewatch/internal/detector"
	"github.com/MikeSquared-Agency/pricewatch/internal/events"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/metrics"
	"github.com/MikeSquared-Agency/pricewatch/internal/scraper"
	"github.com/MikeSquared-Agency/pricewatch/internal/store"
)

// untitled names a product whose page and watchlist entry carry no title.
const untitled = "Untitled product"

// Fetcher reads a product page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (scraper.Product, error)
}

// Notifier queues a drop announcement.
type Notifier interface {
	Add(d events.Drop)
}

// Announcer tells the operator about monitor state changes.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

type Config struct {
	WatchlistFile    string
	PauseFlagFile    string
	CycleInterval    time.Duration
	FetchDelayMin    time.Duration
	FetchDelayMax    time.Duration
	PausePoll        time.Duration
	ErrorBackoff     time.Duration
	BlockCooldown    time.Duration
	BlockCooldownMax time.Duration
}

type Monitor struct {
	cfg       Config
	ledger    store.Ledger
	fetcher   Fetcher
	notifier  Notifier
	announcer Announcer
	reporter  *alerts.Reporter
	stats     *metrics.Daily
	flag      PauseFlag

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(min, max time.Duration) time.Duration

	blocks int
}

// Deps are the monitor's collaborators. Announcer, Reporter and Stats may be nil.
type Deps struct {
	Ledger    store.Ledger
	Fetcher   Fetcher
	Notifier  Notifier
	Announcer Announcer
	Reporter  *alerts.Reporter
	Stats     *metrics.Daily
}

func New(cfg Config, d Deps) *Monitor {
	stats := d.Stats
	if stats == nil {
		stats = metrics.NewDaily(time.Local, 7)
	}
	return &Monitor{
		cfg:       cfg,
		ledger:    d.Ledger,
		fetcher:   d.Fetcher,
		notifier:  d.Notifier,
		announcer: d.Announcer,
		reporter:  d.Reporter,
		stats:     stats,
		flag:      PauseFlag{Path: cfg.PauseFlagFile},
		now:       time.Now,
		sleep:     sleepCtx,
		jitter:    randomBetween,
	}
}

// Run loops until ctx is cancelled. A failed cycle never ends the loop.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("monitor started", "watchlist", m.cfg.WatchlistFile, "pause_flag", m.cfg.PauseFlagFile)
	for ctx.Err() == nil {
		if m.flag.Active() {
			slog.Info("monitor paused", "recheck_in", m.cfg.PausePoll)
			_ = m.sleep(ctx, m.cfg.PausePoll)
			continue
		}

		err := m.safeCycle(ctx)
		switch {
		case ctx.Err() != nil:
		case err == nil:
			m.blocks = 0
			slog.Info("cycle completed", "next_in", m.cfg.CycleInterval)
			_ = m.sleep(ctx, m.cfg.CycleInterval)
		case failure.Is(err, failure.CodeUpstreamBlock):
			m.coolDown(ctx, err)
		default:
			m.stats.Inc(metrics.CycleError, m.now())
			m.reporter.Report(ctx, "MAIN_LOOP", err)
			_ = m.sleep(ctx, m.cfg.ErrorBackoff)
		}
	}
	slog.Info("monitor stopped")
	return nil
}

// safeCycle runs one cycle and turns a panic into a critical error.
func (m *Monitor) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			m.reporter.ReportPanic(ctx, "monitor.cycle", v)
			err = failure.Newf(failure.CodeCritical, "monitor.cycle", "panic: %v", v)
		}
	}()
	return m.Cycle(ctx)
}

// Cycle checks every watched product once. An upstream block aborts the
// cycle; any other per-product failure only skips that product.
func (m *Monitor) Cycle(ctx context.Context) error {
	items, err := LoadWatchlist(m.cfg.WatchlistFile)
	if err != nil {
		return err
	}
	slog.Info("cycle started", "products", len(items))

	for _, it := range items {
		if err := m.sleep(ctx, m.jitter(m.cfg.FetchDelayMin, m.cfg.FetchDelayMax)); err != nil {
			return err
		}
		err := m.Check(ctx, it)
		if err == nil {
			continue
		}
		switch failure.CodeOf(err) {
		case failure.CodeUpstreamBlock:
			return err
		case failure.CodePersistence, failure.CodeCritical:
			m.reporter.Report(ctx, "MONITOR_CHECK", err)
		default:
			slog.Warn("product skipped", "url", it.URL, "code", failure.CodeOf(err), "error", err)
		}
	}

	m.stats.Inc(metrics.Cycle, m.now())
	return nil
}

// Check fetches one product and acts on the detector's verdict.
func (m *Monitor) Check(ctx context.Context, it Item) error {
	now := m.now()
	m.stats.Inc(metrics.Checked, now)

	p, err := m.fetcher.Fetch(ctx, it.URL)
	switch {
	case errors.Is(err, scraper.ErrOutOfStock):
		m.stats.Inc(metrics.OutOfStock, now)
		slog.Info("product out of stock", "url", it.URL)
		return nil
	case err != nil:
		m.countFailure(err, now)
		return err
	case !p.Price.IsPositive():
		m.stats.Inc(metrics.OutOfStock, now)
		slog.Info("no usable price", "product_id", p.ID)
		return nil
	}
	if p.Title == "" {
		p.Title = it.Label
	}
	if p.Title == "" {
		p.Title = untitled
	}

	// A product never recorded has a zero last price, which the detector
	// reads as a first observation.
	last, _, err := m.ledger.LastForID(ctx, p.ID)
	if err != nil {
		m.stats.Inc(metrics.Persist, now)
		return fmt.Errorf("last price for %s: %w", p.ID, err)
	}

	r := detector.Evaluate(p.ID, p.Price, last.NewPrice)
	switch {
	case r.FirstObservation:
		if err := m.record(ctx, p, r, ledger.KindBaseline, now); err != nil {
			return err
		}
		m.stats.Inc(metrics.Baseline, now)
		slog.Info("baseline recorded", "product_id", p.ID, "price", p.Price.StringFixed(2))

	case r.Verdict == detector.Drop:
		if err := m.record(ctx, p, r, ledger.KindMonitorDrop, now); err != nil {
			return err
		}
		m.stats.Inc(metrics.Drop, now)
		m.notifier.Add(events.NewDrop(r, p.Title, p.Link, now))
		slog.Info("price drop detected", "product_id", p.ID, "percent", r.Percent,
			"current", p.Price.StringFixed(2), "previous", r.Baseline.StringFixed(2), "significant", r.Significant)

	case r.Verdict == detector.Increase:
		m.stats.Inc(metrics.Increase, now)
		slog.Info("price increased, not recorded", "product_id", p.ID)

	default:
		m.stats.Inc(metrics.Unchanged, now)
		slog.Debug("no change", "product_id", p.ID)
	}
	return nil
}

func (m *Monitor) record(ctx context.Context, p scraper.Product, r detector.Result, kind ledger.Kind, at time.Time) error {
	err := m.ledger.Append(ctx, ledger.Record{
		ID:        p.ID,
		Title:     p.Title,
		OldPrice:  r.Baseline,
		NewPrice:  p.Price,
		Link:      p.Link,
		Kind:      kind,
		Timestamp: at,
	})
	if err != nil {
		m.stats.Inc(metrics.Persist, at)
		return fmt.Errorf("record %s for %s: %w", kind, p.ID, err)
	}
	return nil
}

func (m *Monitor) countFailure(err error, at time.Time) {
	switch failure.CodeOf(err) {
	case failure.CodeUpstreamBlock:
		m.stats.Inc(metrics.Blocked, at)
	case failure.CodeTransient:
		m.stats.Inc(metrics.Transient, at)
	default:
		m.stats.Inc(metrics.Extraction, at)
	}
}

// coolDown pauses after an upstream block. The wait doubles with every
// consecutive block up to BlockCooldownMax. A flag created here is removed
// afterwards; one placed by the operator is left alone.
func (m *Monitor) coolDown(ctx context.Context, cause error) {
	m.blocks++
	wait := m.cooldownFor(m.blocks)

	created, err := m.flag.Set(m.now(), cause.Error())
	if err != nil {
		m.reporter.Report(ctx, "MONITOR_PAUSE", err)
	}

	slog.Warn("upstream block, cooling down", "consecutive", m.blocks, "cooldown", wait, "error", cause)
	if m.announcer != nil {
		msg := fmt.Sprintf("⚠️ *UPSTREAM BLOCK DETECTED.* Monitoring paused for %s.", wait)
		if err := m.announcer.Announce(ctx, msg); err != nil {
			slog.Warn("block announcement failed", "error", err)
		}
	}

	_ = m.sleep(ctx, wait)

	if created {
		if err := m.flag.Clear(); err != nil {
			m.reporter.Report(ctx, "MONITOR_PAUSE", err)
		}
	}
}

func (m *Monitor) cooldownFor(n int) time.Duration {
	wait := m.cfg.BlockCooldown
	for i := 1; i < n; i++ {
		wait *= 2
		if m.cfg.BlockCooldownMax > 0 && wait >= m.cfg.BlockCooldownMax {
			return m.cfg.BlockCooldownMax
		}
	}
	if m.cfg.BlockCooldownMax > 0 && wait > m.cfg.BlockCooldownMax {
		return m.cfg.BlockCooldownMax
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}
