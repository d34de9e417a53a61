package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/feedmill/internal/domain/model"
)

const defaultLobstersBaseURL = "https://lobste.rs"

// lobstersStory is the native hottest.json schema.
type lobstersStory struct {
	ShortID      string   `json:"short_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	CommentsURL  string   `json:"comments_url"`
	Description  string   `json:"description_plain"`
	Score        int      `json:"score"`
	CommentCount int      `json:"comment_count"`
	CreatedAt    string   `json:"created_at"`
	Tags         []string `json:"tags"`
	Submitter    string   `json:"submitter_user"`
}

// Lobsters fetches the hottest stories list.
type Lobsters struct {
	baseURL string
	client  *http.Client
}

// LobstersOption configures the Lobsters upstream.
type LobstersOption func(*Lobsters)

// WithLobstersBaseURL overrides the API endpoint, mainly for tests.
func WithLobstersBaseURL(url string) LobstersOption {
	return func(l *Lobsters) {
		if url != "" {
			l.baseURL = url
		}
	}
}

// WithLobstersClient sets a custom HTTP client.
func WithLobstersClient(c *http.Client) LobstersOption {
	return func(l *Lobsters) {
		if c != nil {
			l.client = c
		}
	}
}

// NewLobsters builds the upstream with defaults.
func NewLobsters(opts ...LobstersOption) *Lobsters {
	l := &Lobsters{
		baseURL: defaultLobstersBaseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source identifies this upstream.
func (l *Lobsters) Source() model.Source {
	return model.SourceLobsters
}

// FetchPage returns one page of hottest stories, pages numbered from 1.
// Untitled and negatively scored entries are dropped.
func (l *Lobsters) FetchPage(ctx context.Context, page int) ([]model.RawItem, error) {
	if page < 1 {
		page = 1
	}

	var stories []lobstersStory
	url := fmt.Sprintf("%s/hottest.json?page=%d", l.baseURL, page)
	if err := getJSON(ctx, l.client, url, &stories); err != nil {
		return nil, fmt.Errorf("hottest: %w", err)
	}

	items := make([]model.RawItem, 0, len(stories))
	for _, s := range stories {
		item, ok := l.normalize(s)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (l *Lobsters) normalize(s lobstersStory) (model.RawItem, bool) {
	if s.Title == "" || s.Score < 0 {
		return model.RawItem{}, false
	}
	url := s.URL
	if url == "" {
		// Text posts link back to the discussion.
		url = s.CommentsURL
	}
	publishedAt, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		publishedAt = time.Now().UTC()
	}
	return model.RawItem{
		ID:           s.ShortID,
		Source:       model.SourceLobsters,
		Title:        s.Title,
		Author:       s.Submitter,
		URL:          url,
		Body:         s.Description,
		Score:        s.Score,
		CommentCount: s.CommentCount,
		PublishedAt:  publishedAt.UTC(),
	}, true
}
