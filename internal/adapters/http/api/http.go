// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/feedmill/internal/adapters/store"
	"github.com/okian/feedmill/internal/app"
)

// FeedComposer serves pages of the mixed feed.
type FeedComposer interface {
	ComposeFeed(ctx context.Context, limit int, after string) (app.FeedPage, error)
}

// StatsProvider reports per-stage archive counts.
type StatsProvider interface {
	Stats(ctx context.Context) ([]store.StageCount, error)
}

// Dependencies bundles everything the handler layer needs. Using an
// interface bundle keeps handlers loosely coupled to implementations in
// other packages.
type Dependencies interface {
	FeedComposer
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	feedHandler    *FeedHandler
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	metricsHandler *MetricsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		feedHandler:    NewFeedHandler(deps),
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		metricsHandler: NewMetricsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/feed", RequestIDMiddleware(MetricsMiddleware(s.feedHandler.HandleGetFeed, "feed")))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", RequestIDMiddleware(MetricsMiddleware(s.statsHandler.HandleStats, "stats")))
	mux.HandleFunc("/metrics", s.metricsHandler.HandleMetrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
