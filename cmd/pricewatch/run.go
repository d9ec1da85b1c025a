package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
	"github.com/MikeSquared-Agency/pricewatch/internal/api"
	"github.com/MikeSquared-Agency/pricewatch/internal/bus"
	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/config"
	"github.com/MikeSquared-Agency/pricewatch/internal/conversation"
	"github.com/MikeSquared-Agency/pricewatch/internal/digest"
	"github.com/MikeSquared-Agency/pricewatch/internal/events"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/graphics"
	"github.com/MikeSquared-Agency/pricewatch/internal/metrics"
	"github.com/MikeSquared-Agency/pricewatch/internal/monitor"
	"github.com/MikeSquared-Agency/pricewatch/internal/outbox"
	"github.com/MikeSquared-Agency/pricewatch/internal/paramstore"
	"github.com/MikeSquared-Agency/pricewatch/internal/scraper"
	slackalert "github.com/MikeSquared-Agency/pricewatch/internal/slack"
	"github.com/MikeSquared-Agency/pricewatch/internal/store"
	"github.com/MikeSquared-Agency/pricewatch/internal/telegram"
)

const (
	botConsumer   = "pricewatch-bot"
	statsDays     = 7
	sweepInterval = time.Minute
)

func links(cfg config.Config) catalog.Links {
	return catalog.Links{Host: cfg.MarketplaceHost, Tag: cfg.AffiliateTag}
}

func openLedger(ctx context.Context, cfg config.Config) (store.Ledger, error) {
	l, err := store.Open(ctx, store.Options{
		Backend:     cfg.LedgerBackend,
		CSVPath:     cfg.LedgerPath,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		DynamoTable: cfg.DynamoTable,
		Location:    cfg.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.LedgerBackend, err)
	}
	slog.Info("ledger opened", "backend", cfg.LedgerBackend)
	return l, nil
}

// telegramClient returns nil when no token is configured anywhere.
func telegramClient(ctx context.Context, cfg config.Config) (*telegram.Client, error) {
	if cfg.TelegramToken == "" && cfg.TelegramTokenParam == "" {
		return nil, nil
	}
	token, err := paramstore.Resolve(ctx, cfg.TelegramToken, cfg.TelegramTokenParam, paramstore.Open)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram token: %w", err)
	}
	return telegram.NewClient(token, cfg.OperatorChatID, cfg.ChannelID)
}

func newReporter(cfg config.Config, tg *telegram.Client) *alerts.Reporter {
	var sinks []alerts.Sink
	if tg != nil {
		sinks = append(sinks, tg)
	}
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		sinks = append(sinks, slackalert.NewAlerter(cfg.SlackBotToken, cfg.SlackAlertChannel))
		slog.Info("Slack incident alerter enabled", "channel", cfg.SlackAlertChannel)
	}
	return alerts.NewReporter(sinks...)
}

func connectBus(ctx context.Context, cfg config.Config) (*bus.Bus, error) {
	b, err := bus.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}
	if err := b.EnsureStream(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return b, nil
}

func startAPI(d api.Deps, port int) {
	srv := api.NewServer(d, port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func runMonitor(ctx context.Context, cfg config.Config) error {
	slog.Info("pricewatch monitor starting",
		"watchlist", cfg.WatchlistFile,
		"cycle_interval", cfg.CycleInterval,
		"nats_url", cfg.NatsURL,
	)
	loc := cfg.Location()

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	tg, err := telegramClient(ctx, cfg)
	if err != nil {
		return err
	}
	reporter := newReporter(cfg, tg)

	var sink outbox.Sink
	switch {
	case cfg.NatsURL != "":
		b, err := connectBus(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()
		sink = b
		slog.Info("drops published to NATS", "stream", bus.StreamName)
	case tg != nil:
		sink = tg
		slog.Info("drops sent straight to the operator", "operator", cfg.OperatorChatID)
	default:
		slog.Warn("no NATS_URL or Telegram token: drops are only logged")
		sink = outbox.SinkFunc(func(_ context.Context, batch []events.Drop) error {
			for _, d := range batch {
				slog.Info("price drop", "product_id", d.ProductID, "percent", d.Percent, "current", d.Current.StringFixed(2))
			}
			return nil
		})
	}

	ob := outbox.New(sink, outbox.Config{
		FlushInterval:  cfg.OutboxFlushInterval,
		FlushThreshold: 1,
		BufferMax:      cfg.OutboxMax,
	})
	ob.SetAlerter(func(msg string) {
		reporter.Report(ctx, "OUTBOX", failure.Newf(failure.CodeCritical, "outbox", "%s", msg))
	})
	ob.Start(ctx)

	var announcer monitor.Announcer
	if tg != nil {
		announcer = tg
	}
	stats := metrics.NewDaily(loc, statsDays)
	mon := monitor.New(monitor.Config{
		WatchlistFile:    cfg.WatchlistFile,
		PauseFlagFile:    cfg.PauseFlagFile,
		CycleInterval:    cfg.CycleInterval,
		FetchDelayMin:    cfg.FetchDelayMin,
		FetchDelayMax:    cfg.FetchDelayMax,
		PausePoll:        cfg.PausePoll,
		ErrorBackoff:     cfg.ErrorBackoff,
		BlockCooldown:    cfg.BlockCooldown,
		BlockCooldownMax: cfg.BlockCooldownMax,
	}, monitor.Deps{
		Ledger:    ledger,
		Fetcher:   scraper.New(links(cfg), cfg.FetchTimeout),
		Notifier:  ob,
		Announcer: announcer,
		Reporter:  reporter,
		Stats:     stats,
	})

	startAPI(api.Deps{
		Ledger:     ledger,
		Aggregator: digest.NewAggregator(ledger, links(cfg)).In(loc),
		Stats:      stats,
		Pause:      monitor.PauseFlag{Path: cfg.PauseFlagFile},
		Outbox:     ob,
		Location:   loc,
	}, cfg.Port)

	slog.Info("pricewatch monitor ready", "port", cfg.Port)
	err = mon.Run(ctx)
	ob.Wait()
	slog.Info("pricewatch monitor stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runBot(ctx context.Context, cfg config.Config) error {
	loc := cfg.Location()

	tg, err := telegramClient(ctx, cfg)
	if err != nil {
		return err
	}
	if tg == nil {
		return errors.New("TELEGRAM_BOT_TOKEN or TELEGRAM_TOKEN_PARAM is required")
	}
	if cfg.ChannelID == "" {
		return errors.New("CHANNEL_ID is required")
	}
	if cfg.OperatorChatID == 0 {
		slog.Warn("OPERATOR_CHAT_ID not set: every chat may drive the bot and incidents go nowhere on Telegram")
	}

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	reporter := newReporter(cfg, tg)
	composer := graphics.NewComposer(cfg.TemplatePath, graphics.LoadFonts(cfg.FontPath))
	sessions := conversation.NewMemoryStore(cfg.SessionTTL)
	engine := conversation.NewEngine(conversation.Deps{
		Sessions:      sessions,
		Ledger:        ledger,
		Extractor:     scraper.New(links(cfg), cfg.FetchTimeout),
		Photos:        tg,
		Composer:      composer,
		Publisher:     tg,
		Links:         links(cfg),
		DisclaimerURL: cfg.DisclaimerURL,
		Now:           func() time.Time { return time.Now().In(loc) },
	})

	if cfg.NatsURL != "" {
		b, err := connectBus(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.Consume(ctx, botConsumer, tg.NotifyDrop); err != nil {
			return fmt.Errorf("consume drops: %w", err)
		}
	}

	go sweepSessions(ctx, sessions)

	bot := telegram.NewBot(telegram.BotDeps{
		Client:       tg,
		Conversation: engine,
		Digests:      digest.NewAggregator(ledger, links(cfg)).In(loc),
		Collager:     composer,
		Reporter:     reporter,
		PinDigest:    cfg.PinDigest,
	})
	slog.Info("pricewatch bot ready", "operator", cfg.OperatorChatID, "channel", cfg.ChannelID)
	return bot.Run(ctx)
}

func sweepSessions(ctx context.Context, sessions *conversation.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	loc := cfg.Location()
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	startAPI(api.Deps{
		Ledger:     ledger,
		Aggregator: digest.NewAggregator(ledger, links(cfg)).In(loc),
		Stats:      metrics.NewDaily(loc, statsDays),
		Pause:      monitor.PauseFlag{Path: cfg.PauseFlagFile},
		Location:   loc,
	}, cfg.Port)

	<-ctx.Done()
	slog.Info("pricewatch API stopped")
	return nil
}

func printDigest(ctx context.Context, cfg config.Config, w io.Writer) error {
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	d, err := digest.NewAggregator(ledger, links(cfg)).In(cfg.Location()).Build(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, d.Text)
	return err
}
