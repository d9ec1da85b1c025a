package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/pricewatch/internal/digest"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/metrics"
	"github.com/MikeSquared-Agency/pricewatch/internal/monitor"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
	"github.com/MikeSquared-Agency/pricewatch/internal/store"
)

const dayLayout = "2006-01-02"

// Deps are the read models and controls the API exposes. Outbox may be nil.
type Deps struct {
	Ledger     store.Ledger
	Aggregator *digest.Aggregator
	Stats      *metrics.Daily
	Pause      monitor.PauseFlag
	Outbox     interface{ BufferLen() int }
	Location   *time.Location
}

type Server struct {
	ledger     store.Ledger
	aggregator *digest.Aggregator
	stats      *metrics.Daily
	pause      monitor.PauseFlag
	outbox     interface{ BufferLen() int }
	loc        *time.Location
	now        func() time.Time
	router     chi.Router
	port       int
}

func NewServer(d Deps, port int) *Server {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	srv := &Server{
		ledger:     d.Ledger,
		aggregator: d.Aggregator,
		stats:      d.Stats,
		pause:      d.Pause,
		outbox:     d.Outbox,
		loc:        loc,
		now:        time.Now,
		port:       port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Get("/pause", srv.handleGetPause)
		r.Post("/pause", srv.handleSetPause)
		r.Delete("/pause", srv.handleClearPause)
		r.Get("/digest", srv.handleDigest)
		r.Get("/records", srv.handleRecords)
		r.Get("/records/{productID}/latest", srv.handleLatest)
		r.Get("/metrics/today", srv.handleMetricsToday)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// requestID tags every request so its log lines can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"service": "pricewatch",
		"paused":  s.pause.Active(),
	}
	if s.outbox != nil {
		body["outbox_size"] = s.outbox.BufferLen()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetPause(w http.ResponseWriter, r *http.Request) {
	st, err := s.pause.State()
	if err != nil {
		slog.Error("read pause flag failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "paused via API"
	}

	created, err := s.pause.Set(s.now(), req.Reason)
	if err != nil {
		slog.Error("set pause flag failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	slog.Info("monitor pause requested", "created", created, "reason", req.Reason)

	st, _ := s.pause.State()
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, st)
}

func (s *Server) handleClearPause(w http.ResponseWriter, r *http.Request) {
	if err := s.pause.Clear(); err != nil {
		slog.Error("clear pause flag failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	slog.Info("monitor resumed via API")
	w.WriteHeader(http.StatusNoContent)
}

type entryJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	OldPrice string `json:"old_price"`
	NewPrice string `json:"new_price"`
	Percent  int64  `json:"percent"`
	Link     string `json:"link"`
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	d, err := s.aggregator.Build(r.Context())
	if err != nil {
		slog.Error("build digest failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	entries := make([]entryJSON, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, entryJSON{
			ID:       e.ID,
			Title:    e.Title,
			OldPrice: e.Old.StringFixed(2),
			NewPrice: e.New.StringFixed(2),
			Percent:  e.Percent,
			Link:     e.Link,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":     d.Day.In(s.loc).Format(dayLayout),
		"entries": entries,
		"photos":  len(d.Photos),
		"text":    d.Text,
	})
}

type recordJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	OldPrice    string    `json:"old_price"`
	NewPrice    string    `json:"new_price"`
	Percent     int64     `json:"percent"`
	Link        string    `json:"link"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

func toJSON(r ledger.Record) recordJSON {
	kind := string(r.Kind)
	if kind == "" {
		kind = "LEGACY"
	}
	return recordJSON{
		ID:          r.ID,
		Title:       r.Title,
		OldPrice:    r.OldPrice.StringFixed(2),
		NewPrice:    r.NewPrice.StringFixed(2),
		Percent:     pricing.Percent(r.NewPrice, r.OldPrice),
		Link:        r.Link,
		ArtifactRef: r.ArtifactRef,
		Kind:        kind,
		Timestamp:   r.Timestamp,
	}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	day := s.now().In(s.loc)
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.ParseInLocation(dayLayout, v, s.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
			return
		}
		day = d
	}

	recs, err := s.ledger.RecordsOn(r.Context(), day)
	if err != nil {
		slog.Error("query records failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	out := make([]recordJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	rec, ok, err := s.ledger.LastForID(r.Context(), id)
	if err != nil {
		slog.Error("query latest record failed", "product_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rec))
}

func (s *Server) handleMetricsToday(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Day(s.now()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
