package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	LogLevel string

	TelegramToken      string
	TelegramTokenParam string
	OperatorChatID     int64
	ChannelID          string

	AffiliateTag    string
	MarketplaceHost string
	DisclaimerURL   string

	LedgerBackend string
	LedgerPath    string
	DatabaseURL   string
	SQLitePath    string
	DynamoTable   string
	Timezone      string

	WatchlistFile    string
	PauseFlagFile    string
	CycleInterval    time.Duration
	FetchDelayMin    time.Duration
	FetchDelayMax    time.Duration
	FetchTimeout     time.Duration
	PausePoll        time.Duration
	ErrorBackoff     time.Duration
	BlockCooldown    time.Duration
	BlockCooldownMax time.Duration

	NatsURL             string
	OutboxFlushInterval time.Duration
	OutboxMax           int

	SlackBotToken     string
	SlackAlertChannel string

	TemplatePath string
	FontPath     string
	SessionTTL   time.Duration
	PinDigest    bool
}

func Load() Config {
	return Config{
		Port:     envInt("PRICEWATCH_PORT", 8710),
		LogLevel: envStr("LOG_LEVEL", "info"),

		TelegramToken:      envStr("TELEGRAM_BOT_TOKEN", ""),
		TelegramTokenParam: envStr("TELEGRAM_TOKEN_PARAM", ""),
		OperatorChatID:     envInt64("OPERATOR_CHAT_ID", 0),
		ChannelID:          envStr("CHANNEL_ID", ""),

		AffiliateTag:    envStr("AFFILIATE_TAG", "radartest-21"),
		MarketplaceHost: envStr("MARKETPLACE_HOST", "www.amazon.it"),
		DisclaimerURL:   envStr("DISCLAIMER_URL", "https://t.me/citazioneradar/178"),

		LedgerBackend: envStr("LEDGER_BACKEND", "csv"),
		LedgerPath:    envStr("LEDGER_PATH", "Registro_Vendite.csv"),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		SQLitePath:    envStr("SQLITE_PATH", "pricewatch.db"),
		DynamoTable:   envStr("DYNAMODB_TABLE", ""),
		Timezone:      envStr("TZ_NAME", "Europe/Rome"),

		WatchlistFile:    envStr("WATCHLIST_FILE", "watchlist.txt"),
		PauseFlagFile:    envStr("PAUSE_FLAG_FILE", "PAUSE_CRUISER.flag"),
		CycleInterval:    envMillis("CYCLE_INTERVAL_MS", 300000),
		FetchDelayMin:    envMillis("FETCH_DELAY_MIN_MS", 5000),
		FetchDelayMax:    envMillis("FETCH_DELAY_MAX_MS", 15000),
		FetchTimeout:     envMillis("FETCH_TIMEOUT_MS", 15000),
		PausePoll:        envMillis("PAUSE_POLL_MS", 60000),
		ErrorBackoff:     envMillis("ERROR_BACKOFF_MS", 30000),
		BlockCooldown:    envMillis("BLOCK_COOLDOWN_MS", 3600000),
		BlockCooldownMax: envMillis("BLOCK_COOLDOWN_MAX_MS", 21600000),

		NatsURL:             envStr("NATS_URL", ""),
		OutboxFlushInterval: envMillis("OUTBOX_FLUSH_INTERVAL_MS", 2000),
		OutboxMax:           envInt("OUTBOX_MAX", 500),

		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: envStr("SLACK_ALERT_CHANNEL", ""),

		TemplatePath: envStr("TEMPLATE_PATH", "template.png"),
		FontPath:     envStr("FONT_PATH", "Montserrat-Bold.ttf"),
		SessionTTL:   envMillis("SESSION_TTL_MS", 7200000),
		PinDigest:    envBool("PIN_DIGEST", false),
	}
}

// Location resolves Timezone, falling back to the process's local zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
