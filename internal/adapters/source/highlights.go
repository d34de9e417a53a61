package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/pkg/logger"
)

// Go blog scraper defaults.
const (
	defaultGoBlogURL    = "https://go.dev/blog/"
	highlightsCacheKey  = "source:highlights:goblog"
	blogIndexDateLayout = "2 January 2006"

	// maxHighlights keeps the pool small; cadence insertion only ever
	// needs a handful.
	maxHighlights = 20
)

// GoBlog scrapes the official Go blog index for highlight entries.
type GoBlog struct {
	indexURL string
	client   *http.Client
	cache    Cache
	group    singleflight.Group
	log      logger.Logger
}

// GoBlogOption configures the highlight provider.
type GoBlogOption func(*GoBlog)

// WithGoBlogURL overrides the index page, mainly for tests.
func WithGoBlogURL(url string) GoBlogOption {
	return func(g *GoBlog) {
		if url != "" {
			g.indexURL = url
		}
	}
}

// WithGoBlogClient sets a custom HTTP client.
func WithGoBlogClient(c *http.Client) GoBlogOption {
	return func(g *GoBlog) {
		if c != nil {
			g.client = c
		}
	}
}

// WithGoBlogCache enables read-through caching of the scraped index.
func WithGoBlogCache(cache Cache) GoBlogOption {
	return func(g *GoBlog) {
		g.cache = cache
	}
}

// NewGoBlog builds the highlight provider with defaults.
func NewGoBlog(opts ...GoBlogOption) *GoBlog {
	g := &GoBlog{
		indexURL: defaultGoBlogURL,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("source").Named("goblog")
	}
	return g
}

// Highlights returns the most recent blog entries, newest first. A cold
// cache triggers at most one scrape regardless of concurrent callers.
func (g *GoBlog) Highlights(ctx context.Context) ([]model.Highlight, error) {
	if g.cache != nil {
		if payload, ok := g.cache.Get(ctx, highlightsCacheKey); ok {
			var highlights []model.Highlight
			if err := json.Unmarshal(payload, &highlights); err == nil {
				return highlights, nil
			}
		}
	}

	result, err, _ := g.group.Do(highlightsCacheKey, func() (any, error) {
		return g.scrape(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: goblog: %v", ErrUnavailable, err)
	}

	highlights, ok := result.([]model.Highlight)
	if !ok {
		return nil, fmt.Errorf("%w: goblog: unexpected result type", ErrUnavailable)
	}
	return highlights, nil
}

func (g *GoBlog) scrape(ctx context.Context) ([]model.Highlight, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, g.indexURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	var highlights []model.Highlight
	doc.Find("p.blogtitle").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a").First()
		href, exists := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !exists || title == "" {
			return true
		}

		publishedAt := time.Time{}
		if raw := strings.TrimSpace(sel.Find("span.date").First().Text()); raw != "" {
			if parsed, perr := time.Parse(blogIndexDateLayout, raw); perr == nil {
				publishedAt = parsed.UTC()
			}
		}

		highlights = append(highlights, model.Highlight{
			ID:          highlightID(href),
			Title:       title,
			URL:         g.absoluteURL(href),
			Summary:     strings.TrimSpace(sel.Next().Filter("p.blogsummary").Text()),
			PublishedAt: publishedAt,
		})
		return len(highlights) < maxHighlights
	})

	if len(highlights) == 0 {
		return nil, fmt.Errorf("no entries found at %s", g.indexURL)
	}

	if g.cache != nil {
		if payload, marshalErr := json.Marshal(highlights); marshalErr == nil {
			g.cache.Set(ctx, highlightsCacheKey, payload)
		}
	}

	g.log.Debug(ctx, "scraped blog index", logger.Int("highlights", len(highlights)))
	return highlights, nil
}

// absoluteURL resolves index-relative links against go.dev.
func (g *GoBlog) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return "https://go.dev" + href
}

// highlightID derives a stable identifier from the entry slug.
func highlightID(href string) string {
	slug := strings.Trim(href, "/")
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	return "goblog:" + slug
}
