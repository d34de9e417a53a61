package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/feedmill/internal/domain/model"
)

// DEV community API defaults.
const (
	defaultDevtoBaseURL  = "https://dev.to"
	defaultDevtoPageSize = 30

	// devtoMinReactions filters out zero-engagement posts from the
	// firehose listing.
	devtoMinReactions = 1
)

// devtoArticle is the native articles schema.
type devtoArticle struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	PublishedAt   string   `json:"published_at"`
	Reactions     int      `json:"positive_reactions_count"`
	CommentsCount int      `json:"comments_count"`
	TagList       []string `json:"tag_list"`
	User          struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
}

// Devto fetches recent articles from the DEV community API.
type Devto struct {
	baseURL      string
	pageSize     int
	minReactions int
	client       *http.Client
}

// DevtoOption configures the DEV upstream.
type DevtoOption func(*Devto)

// WithDevtoBaseURL overrides the API endpoint, mainly for tests.
func WithDevtoBaseURL(url string) DevtoOption {
	return func(d *Devto) {
		if url != "" {
			d.baseURL = url
		}
	}
}

// WithDevtoPageSize sets how many articles make one page.
func WithDevtoPageSize(n int) DevtoOption {
	return func(d *Devto) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// WithDevtoMinReactions sets the low-engagement cutoff.
func WithDevtoMinReactions(n int) DevtoOption {
	return func(d *Devto) {
		if n >= 0 {
			d.minReactions = n
		}
	}
}

// WithDevtoClient sets a custom HTTP client.
func WithDevtoClient(c *http.Client) DevtoOption {
	return func(d *Devto) {
		if c != nil {
			d.client = c
		}
	}
}

// NewDevto builds the upstream with defaults.
func NewDevto(opts ...DevtoOption) *Devto {
	d := &Devto{
		baseURL:      defaultDevtoBaseURL,
		pageSize:     defaultDevtoPageSize,
		minReactions: devtoMinReactions,
		client:       http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Source identifies this upstream.
func (d *Devto) Source() model.Source {
	return model.SourceDevTo
}

// FetchPage returns one page of articles, pages numbered from 1.
func (d *Devto) FetchPage(ctx context.Context, page int) ([]model.RawItem, error) {
	if page < 1 {
		page = 1
	}

	var articles []devtoArticle
	url := fmt.Sprintf("%s/api/articles?page=%d&per_page=%d", d.baseURL, page, d.pageSize)
	if err := getJSON(ctx, d.client, url, &articles); err != nil {
		return nil, fmt.Errorf("articles: %w", err)
	}

	items := make([]model.RawItem, 0, len(articles))
	for _, a := range articles {
		item, ok := d.normalize(a)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (d *Devto) normalize(a devtoArticle) (model.RawItem, bool) {
	if a.Title == "" || a.Reactions < d.minReactions {
		return model.RawItem{}, false
	}
	author := a.User.Name
	if author == "" {
		author = a.User.Username
	}
	publishedAt, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		publishedAt = time.Now().UTC()
	}
	return model.RawItem{
		ID:           strconv.Itoa(a.ID),
		Source:       model.SourceDevTo,
		Title:        a.Title,
		Author:       author,
		URL:          a.URL,
		Body:         a.Description,
		Score:        a.Reactions,
		CommentCount: a.CommentsCount,
		PublishedAt:  publishedAt.UTC(),
	}, true
}
