package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/feedmill/internal/domain/model"
)

// Hacker News Firebase API defaults.
const (
	defaultHNBaseURL  = "https://hacker-news.firebaseio.com/v0"
	defaultHNPageSize = 30

	// hnItemConcurrency bounds the fan-out when hydrating story IDs.
	hnItemConcurrency = 8
)

// hnStory is the native item schema.
type hnStory struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// HackerNews fetches top stories in two phases: the ranked ID list, then
// the individual items for the requested page slice.
type HackerNews struct {
	baseURL  string
	pageSize int
	client   *http.Client
}

// HNOption configures the Hacker News upstream.
type HNOption func(*HackerNews)

// WithHNBaseURL overrides the API endpoint, mainly for tests.
func WithHNBaseURL(url string) HNOption {
	return func(h *HackerNews) {
		if url != "" {
			h.baseURL = url
		}
	}
}

// WithHNPageSize sets how many stories make one page.
func WithHNPageSize(n int) HNOption {
	return func(h *HackerNews) {
		if n > 0 {
			h.pageSize = n
		}
	}
}

// WithHNClient sets a custom HTTP client.
func WithHNClient(c *http.Client) HNOption {
	return func(h *HackerNews) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHackerNews builds the upstream with defaults.
func NewHackerNews(opts ...HNOption) *HackerNews {
	h := &HackerNews{
		baseURL:  defaultHNBaseURL,
		pageSize: defaultHNPageSize,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Source identifies this upstream.
func (h *HackerNews) Source() model.Source {
	return model.SourceHackerNews
}

// FetchPage returns one page of top stories, pages numbered from 1.
// Dead, deleted and non-story entries are dropped.
func (h *HackerNews) FetchPage(ctx context.Context, page int) ([]model.RawItem, error) {
	if page < 1 {
		page = 1
	}

	var ids []int
	if err := getJSON(ctx, h.client, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("top stories: %w", err)
	}

	offset := (page - 1) * h.pageSize
	if offset >= len(ids) {
		return []model.RawItem{}, nil
	}
	end := offset + h.pageSize
	if end > len(ids) {
		end = len(ids)
	}
	ids = ids[offset:end]

	// Hydrate concurrently but keep the upstream ranking: items carry
	// their slot index and are reordered after the fan-in.
	type slot struct {
		index int
		item  model.RawItem
	}

	var (
		mu    sync.Mutex
		slots []slot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnItemConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			var story hnStory
			url := fmt.Sprintf("%s/item/%d.json", h.baseURL, id)
			if err := getJSON(gctx, h.client, url, &story); err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			item, ok := h.normalize(story)
			if !ok {
				return nil
			}
			mu.Lock()
			slots = append(slots, slot{index: i, item: item})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })
	items := make([]model.RawItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, s.item)
	}
	return items, nil
}

// normalize maps a story into the shared schema. The second return is
// false for entries the feed never shows.
func (h *HackerNews) normalize(s hnStory) (model.RawItem, bool) {
	if s.Dead || s.Deleted || s.Type != "story" || s.Title == "" {
		return model.RawItem{}, false
	}
	url := s.URL
	if url == "" {
		// Ask HN and text posts have no external link.
		url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", s.ID)
	}
	return model.RawItem{
		ID:           fmt.Sprintf("%d", s.ID),
		Source:       model.SourceHackerNews,
		Title:        s.Title,
		Author:       s.By,
		URL:          url,
		Body:         s.Text,
		Score:        s.Score,
		CommentCount: s.Descendants,
		PublishedAt:  time.Unix(s.Time, 0).UTC(),
	}, true
}

// getJSON fetches url and decodes the body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
