package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

type captured struct {
	auth, contentType string
	payload           map[string]any
	raw               string
}

// slackStub answers every post with reply and keeps what it received.
type slackStub struct {
	mu    sync.Mutex
	posts []captured
}

func (s *slackStub) serve(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c := captured{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			raw:         string(raw),
		}
		_ = json.Unmarshal(raw, &c.payload)
		s.mu.Lock()
		s.posts = append(s.posts, c)
		s.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *slackStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func stubAlerter(url string, clock *time.Time) *Alerter {
	a := NewAlerter("xoxb-secret", "#pricewatch")
	a.apiURL = url
	if clock != nil {
		a.now = func() time.Time { return *clock }
	}
	return a
}

func ledgerIncident() alerts.Incident {
	return alerts.Incident{
		Where:   "MAIN_LOOP",
		Code:    failure.CodePersistence,
		Message: "append ledger: disk full",
		Stack:   "goroutine 1 [running]",
		At:      time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewAlerterDefaults(t *testing.T) {
	a := NewAlerter("xoxb-1", "#ops")
	if a.apiURL != postMessageURL {
		t.Errorf("apiURL = %s", a.apiURL)
	}
	if a.quiet != 30*time.Second {
		t.Errorf("quiet = %v", a.quiet)
	}
	if a.client == nil || a.seen == nil {
		t.Fatal("client and seen map must be initialised")
	}
}

func TestNotifyPostsIncident(t *testing.T) {
	stub := &slackStub{}
	srv := stub.serve(t, http.StatusOK, `{"ok":true}`)

	if err := stubAlerter(srv.URL, nil).Notify(context.Background(), ledgerIncident()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if stub.count() != 1 {
		t.Fatalf("posts = %d, want 1", stub.count())
	}

	got := stub.posts[0]
	if got.auth != "Bearer xoxb-secret" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.contentType != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
	if got.payload["channel"] != "#pricewatch" {
		t.Errorf("channel = %v", got.payload["channel"])
	}
	if got.payload["text"] != "[PERSISTENCE] MAIN_LOOP: append ledger: disk full" {
		t.Errorf("text = %v", got.payload["text"])
	}
	if blocks, _ := got.payload["blocks"].([]any); len(blocks) != 3 {
		t.Errorf("blocks = %d, want header, fields and stack", len(blocks))
	}
	for _, want := range []string{"*Component*\\nMAIN_LOOP", "2024-03-05T09:30:00Z", "goroutine 1"} {
		if !strings.Contains(got.raw, want) {
			t.Errorf("payload missing %q: %s", want, got.raw)
		}
	}
}

func TestNotifyWithoutStackOrMessage(t *testing.T) {
	stub := &slackStub{}
	srv := stub.serve(t, http.StatusOK, `{"ok":true}`)

	inc := ledgerIncident()
	inc.Stack, inc.Message = "", ""
	if err := stubAlerter(srv.URL, nil).Notify(context.Background(), inc); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	got := stub.posts[0]
	if blocks, _ := got.payload["blocks"].([]any); len(blocks) != 2 {
		t.Errorf("blocks = %d, want 2", len(blocks))
	}
	if got.payload["text"] != "[PERSISTENCE] MAIN_LOOP: no details" {
		t.Errorf("text = %v", got.payload["text"])
	}
}

func TestNotifyMutesRepeatsPerKey(t *testing.T) {
	stub := &slackStub{}
	srv := stub.serve(t, http.StatusOK, `{"ok":true}`)
	clock := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	a := stubAlerter(srv.URL, &clock)
	ctx := context.Background()

	inc := ledgerIncident()
	other := ledgerIncident()
	other.Where = "DIGEST_PUBLISH"

	for _, step := range []struct {
		advance time.Duration
		inc     alerts.Incident
		want    int
	}{
		{0, inc, 1},
		{5 * time.Second, inc, 1},
		{0, other, 2},
		{30 * time.Second, inc, 3},
	} {
		clock = clock.Add(step.advance)
		if err := a.Notify(ctx, step.inc); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if got := stub.count(); got != step.want {
			t.Fatalf("after %s at %s: posts = %d, want %d", step.inc.Where, clock.Format(time.TimeOnly), got, step.want)
		}
	}
}

func TestNotifyErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{"http status", http.StatusInternalServerError, "", "status 500"},
		{"api refusal", http.StatusOK, `{"ok":false,"error":"channel_not_found"}`, "channel_not_found"},
		{"garbage reply", http.StatusOK, "<html>", "decode reply"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &slackStub{}
			srv := stub.serve(t, tc.status, tc.reply)

			err := stubAlerter(srv.URL, nil).Notify(context.Background(), ledgerIncident())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
			if !strings.Contains(err.Error(), "MAIN_LOOP/PERSISTENCE") {
				t.Errorf("err should carry the incident key: %v", err)
			}
		})
	}
}
