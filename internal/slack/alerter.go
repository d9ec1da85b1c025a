package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
)

const postMessageURL = "https://slack.com/api/chat.postMessage"

// Alerter mirrors operator incidents into a Slack channel. Repeats of the
// same incident (same Where and Code) are muted for a quiet period.
type Alerter struct {
	token   string
	channel string
	client  *http.Client
	apiURL  string
	quiet   time.Duration
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewAlerter(token, channel string) *Alerter {
	return &Alerter{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  postMessageURL,
		quiet:   30 * time.Second,
		now:     time.Now,
		seen:    make(map[string]time.Time),
	}
}

// Notify implements alerts.Sink.
func (a *Alerter) Notify(ctx context.Context, inc alerts.Incident) error {
	key := inc.Where + "/" + string(inc.Code)
	if a.muted(key) {
		slog.Debug("slack incident muted", "key", key)
		return nil
	}

	payload := map[string]any{
		"channel": a.channel,
		"text":    fallbackText(inc),
		"blocks":  incidentBlocks(inc),
	}
	if err := a.post(ctx, payload); err != nil {
		return fmt.Errorf("slack incident %s: %w", key, err)
	}
	slog.Info("incident mirrored to slack", "key", key, "channel", a.channel)
	return nil
}

// muted records the attempt and reports whether key fired within the quiet period.
func (a *Alerter) muted(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.seen[key]; ok && now.Sub(last) < a.quiet {
		return true
	}
	a.seen[key] = now
	return false
}

func fallbackText(inc alerts.Incident) string {
	msg := inc.Message
	if msg == "" {
		msg = "no details"
	}
	return fmt.Sprintf("[%s] %s: %s", inc.Code, inc.Where, msg)
}

func incidentBlocks(inc alerts.Incident) []map[string]any {
	field := func(label, value string) map[string]any {
		return map[string]any{"type": "mrkdwn", "text": "*" + label + "*\n" + value}
	}
	detail := inc.Message
	if detail == "" {
		detail = "no details"
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": "⚠️ pricewatch incident"},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				field("Component", inc.Where),
				field("Code", string(inc.Code)),
				field("Detail", detail),
				field("Time", inc.At.UTC().Format(time.RFC3339)),
			},
		},
	}
	if inc.Stack != "" {
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": "```" + inc.Stack + "```"},
			},
		})
	}
	return blocks
}

func (a *Alerter) post(ctx context.Context, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var reply struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("api: %s", reply.Error)
	}
	return nil
}
