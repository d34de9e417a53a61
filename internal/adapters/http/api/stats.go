package api

import (
	"net/http"

	"github.com/okian/feedmill/internal/adapters/store"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// statsResponse groups stage counts for GET /stats.
type statsResponse struct {
	Stages []store.StageCount `json:"stages"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	counts, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_unavailable", err)
		return
	}
	if counts == nil {
		counts = []store.StageCount{}
	}

	writeJSON(w, http.StatusOK, statsResponse{Stages: counts})
}
