package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/digest"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/metrics"
	"github.com/MikeSquared-Agency/pricewatch/internal/monitor"
	"github.com/MikeSquared-Agency/pricewatch/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type fixedOutbox int

func (f fixedOutbox) BufferLen() int { return int(f) }

func setupServer(t *testing.T, ml *testutil.MockLedger) (*Server, *metrics.Daily) {
	t.Helper()
	stats := metrics.NewDaily(time.UTC, 7)
	srv := NewServer(Deps{
		Ledger:     ml,
		Aggregator: digest.NewAggregator(ml, catalog.Links{Host: "www.amazon.it", Tag: "radartest-21"}),
		Stats:      stats,
		Pause:      monitor.PauseFlag{Path: filepath.Join(t.TempDir(), "pause.flag")},
		Outbox:     fixedOutbox(3),
		Location:   time.UTC,
	}, 8710)
	srv.now = func() time.Time { return fixedNow }
	return srv, stats
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func rec(id, oldPrice, newPrice string, kind ledger.Kind, at time.Time) ledger.Record {
	return ledger.Record{
		ID:        id,
		Title:     "Item " + id,
		OldPrice:  decimal.RequireFromString(oldPrice),
		NewPrice:  decimal.RequireFromString(newPrice),
		Link:      "https://www.amazon.it/dp/" + id,
		Kind:      kind,
		Timestamp: at,
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t, testutil.NewMockLedger())

	w := serve(srv, "GET", "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["service"] != "pricewatch" {
		t.Errorf("expected service pricewatch, got %v", body["service"])
	}
	if body["paused"] != false {
		t.Errorf("expected paused false, got %v", body["paused"])
	}
	if body["outbox_size"] != float64(3) {
		t.Errorf("expected outbox_size 3, got %v", body["outbox_size"])
	}
}

func TestHealthEndpoint_KeepsCallerRequestID(t *testing.T) {
	srv, _ := setupServer(t, testutil.NewMockLedger())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request id abc-123, got %q", got)
	}
}

func TestPauseLifecycle(t *testing.T) {
	srv, _ := setupServer(t, testutil.NewMockLedger())

	w := serve(srv, "POST", "/api/v1/pause", `{"reason":"maintenance"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var st monitor.State
	json.NewDecoder(w.Body).Decode(&st)
	if !st.Paused || st.Reason != "maintenance" {
		t.Errorf("unexpected state after pause: %+v", st)
	}

	w = serve(srv, "POST", "/api/v1/pause", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for existing flag, got %d", w.Code)
	}

	w = serve(srv, "GET", "/api/v1/pause", "")
	json.NewDecoder(w.Body).Decode(&st)
	if !st.Paused || st.Reason != "maintenance" {
		t.Errorf("second pause should keep the original reason, got %+v", st)
	}

	w = serve(srv, "DELETE", "/api/v1/pause", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if srv.pause.Active() {
		t.Error("flag should be gone after DELETE")
	}

	w = serve(srv, "DELETE", "/api/v1/pause", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("clearing a missing flag should succeed, got %d", w.Code)
	}
}

func TestPause_InvalidBody(t *testing.T) {
	srv, _ := setupServer(t, testutil.NewMockLedger())

	w := serve(srv, "POST", "/api/v1/pause", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if srv.pause.Active() {
		t.Error("flag should not be created on a bad request")
	}
}

func TestRecordsEndpoint_DefaultsToToday(t *testing.T) {
	ml := testutil.NewMockLedger(
		rec("B0AAAAAAA1", "100", "80", ledger.KindMonitorDrop, fixedNow.Add(-time.Hour)),
		rec("B0AAAAAAA2", "50", "50", ledger.KindBaseline, fixedNow.Add(-26*time.Hour)),
		rec("B0AAAAAAA3", "0", "19.9", ledger.KindLegacy, fixedNow.Add(-2*time.Hour)),
	)
	srv, _ := setupServer(t, ml)

	w := serve(srv, "GET", "/api/v1/records", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []recordJSON
	json.NewDecoder(w.Body).Decode(&out)
	if len(out) != 2 {
		t.Fatalf("expected 2 records for today, got %d", len(out))
	}
	if out[0].ID != "B0AAAAAAA1" || out[0].Percent != 20 || out[0].OldPrice != "100.00" || out[0].NewPrice != "80.00" {
		t.Errorf("unexpected first record: %+v", out[0])
	}
	if out[0].Kind != "MONITOR_DROP" {
		t.Errorf("expected kind MONITOR_DROP, got %s", out[0].Kind)
	}
	if out[1].Kind != "LEGACY" || out[1].Percent != 0 {
		t.Errorf("unexpected legacy record: %+v", out[1])
	}
}

func TestRecordsEndpoint_ExplicitDay(t *testing.T) {
	ml := testutil.NewMockLedger(
		rec("B0AAAAAAA2", "50", "50", ledger.KindBaseline, fixedNow.Add(-26*time.Hour)),
	)
	srv, _ := setupServer(t, ml)

	w := serve(srv, "GET", "/api/v1/records?day=2024-03-04", "")
	var out []recordJSON
	json.NewDecoder(w.Body).Decode(&out)
	if len(out) != 1 || out[0].ID != "B0AAAAAAA2" {
		t.Errorf("expected the baseline from 2024-03-04, got %+v", out)
	}
}

func TestRecordsEndpoint_BadDay(t *testing.T) {
	srv, _ := setupServer(t, testutil.NewMockLedger())

	w := serve(srv, "GET", "/api/v1/records?day=05/03/2024", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRecordsEndpoint_StoreError(t *testing.T) {
	ml := testutil.NewMockLedger()
	ml.RecordsErr = errors.New("disk gone")
	srv, _ := setupServer(t, ml)

	w := serve(srv, "GET", "/api/v1/records", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestLatestEndpoint(t *testing.T) {
	ml := testutil.NewMockLedger(
		rec("B0AAAAAAA1", "100", "100", ledger.KindBaseline, fixedNow.Add(-48*time.Hour)),
		rec("B0AAAAAAA1", "100", "75", ledger.KindMonitorDrop, fixedNow.Add(-time.Hour)),
	)
	srv, _ := setupServer(t, ml)

	w := serve(srv, "GET", "/api/v1/records/B0AAAAAAA1/latest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got recordJSON
	json.NewDecoder(w.Body).Decode(&got)
	if got.NewPrice != "75.00" || got.Percent != 25 {
		t.Errorf("expected the latest drop, got %+v", got)
	}

	w = serve(srv, "GET", "/api/v1/records/B0MISSING0/latest", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDigestEndpoint(t *testing.T) {
	now := time.Now()
	ml := testutil.NewMockLedger(
		rec("B0AAAAAAA1", "100", "90", ledger.KindManualPost, now),
		rec("B0AAAAAAA2", "100", "50", ledger.KindMonitorDrop, now),
		rec("B0AAAAAAA3", "30", "30", ledger.KindBaseline, now),
	)
	srv, _ := setupServer(t, ml)

	w := serve(srv, "GET", "/api/v1/digest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Entries []entryJSON `json:"entries"`
		Text    string      `json:"text"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Entries) != 2 {
		t.Fatalf("expected 2 ranked entries, got %d", len(body.Entries))
	}
	if body.Entries[0].ID != "B0AAAAAAA2" || body.Entries[0].Percent != 50 {
		t.Errorf("expected the 50%% drop first, got %+v", body.Entries[0])
	}
	if body.Text == "" {
		t.Error("expected rendered digest text")
	}
}

func TestMetricsToday(t *testing.T) {
	srv, stats := setupServer(t, testutil.NewMockLedger())
	stats.Inc(metrics.Checked, fixedNow)
	stats.Inc(metrics.Checked, fixedNow)
	stats.Inc(metrics.Drop, fixedNow)
	stats.Inc(metrics.Drop, fixedNow.Add(-24*time.Hour))

	w := serve(srv, "GET", "/api/v1/metrics/today", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap metrics.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.Day != "2024-03-05" {
		t.Errorf("expected day 2024-03-05, got %s", snap.Day)
	}
	if snap.Counts[metrics.Checked] != 2 || snap.Counts[metrics.Drop] != 1 {
		t.Errorf("unexpected counts: %v", snap.Counts)
	}
}
