// Package api serves the latest scan results over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
	"OpportunityScanner/internal/recorder"
	"OpportunityScanner/internal/strategy"
)

// LatestFunc returns the most recent run, or nil when none exists.
type LatestFunc func() (*recorder.ScanRun, error)

// Handler holds the HTTP handlers.
type Handler struct {
	latest LatestFunc
	logger *zap.Logger
}

func NewHandler(latest LatestFunc, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{latest: latest, logger: logger.Named("api")}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type opportunitiesResponse struct {
	RunID         string                    `json:"run_id"`
	StartedAt     time.Time                 `json:"started_at"`
	Mode          string                    `json:"mode"`
	Opportunities []model.OpportunityRecord `json:"opportunities"`
}

// HandleLatestOpportunities serves the last run's records. ?mode= narrows them further.
func (h *Handler) HandleLatestOpportunities(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadLatest(w)
	if !ok {
		return
	}
	mode, err := strategy.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	recs := make([]model.OpportunityRecord, 0, len(run.Opportunities))
	for _, o := range run.Opportunities {
		if mode.Allows(o.Status) {
			recs = append(recs, o)
		}
	}
	h.writeJSON(w, http.StatusOK, opportunitiesResponse{
		RunID:         run.ID,
		StartedAt:     run.StartedAt,
		Mode:          run.Mode,
		Opportunities: recs,
	})
}

func (h *Handler) HandleLatestRun(w http.ResponseWriter, _ *http.Request) {
	run, ok := h.loadLatest(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) loadLatest(w http.ResponseWriter) (*recorder.ScanRun, bool) {
	run, err := h.latest()
	if err != nil {
		h.logger.Error("load latest run", zap.Error(err))
		h.jsonError(w, "failed to load scan history", http.StatusInternalServerError)
		return nil, false
	}
	if run == nil {
		h.jsonError(w, "no scan has run yet", http.StatusNotFound)
		return nil, false
	}
	return run, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
