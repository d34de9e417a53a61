package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/feedmill/internal/app"
	"github.com/okian/feedmill/internal/domain/model"
)

const defaultLimit = 10

// FeedHandler handles feed page requests.
type FeedHandler struct {
	feeds FeedComposer
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(feeds FeedComposer) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// feedResponse mirrors the boundary schema for GET /feed.
type feedResponse struct {
	Items      []model.FeedItem     `json:"items"`
	NextCursor *string              `json:"nextCursor"`
	Sources    []model.SourceStatus `json:"sources"`
}

// HandleGetFeed handles GET /feed?limit=N&after=<id> requests.
func (h *FeedHandler) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}

	after := r.URL.Query().Get("after")

	page, err := h.feeds.ComposeFeed(r.Context(), limit, after)
	if err != nil {
		if errors.Is(err, app.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "feed_unavailable", err)
		return
	}

	resp := feedResponse{
		Items:   page.Items,
		Sources: page.Sources,
	}
	if resp.Items == nil {
		resp.Items = []model.FeedItem{}
	}
	if resp.Sources == nil {
		resp.Sources = []model.SourceStatus{}
	}
	if page.NextCursor != "" {
		resp.NextCursor = &page.NextCursor
	}

	writeJSON(w, http.StatusOK, resp)
}
