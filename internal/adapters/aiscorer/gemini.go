// Package aiscorer scores content relevance with the Gemini API. It
// implements the scorer contract the relevance enricher consumes; callers
// fall back to keyword matching when it errors.
package aiscorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/okian/feedmill/pkg/logger"
)

const defaultModel = "gemini-2.5-flash-lite"

const promptTemplate = `You are an expert software engineer curating a technology news feed.

Rate how relevant the following item is to professional software and
technology readers on a scale of 0 to 100, where 0 means entirely
off-topic and 100 means essential technical content.

Title: %s
Body: %s

Return strictly a JSON object with a single field:
{"score": <integer 0-100>}

Return the JSON only, without markdown fences or commentary.`

// scoreResponse is the shape the model is instructed to return.
type scoreResponse struct {
	Score int `json:"score"`
}

// Gemini asks a generative model for a relevance score.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    logger.Logger
}

// Option configures the scorer.
type Option func(*Gemini)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Gemini) {
		if log != nil {
			g.log = log
		}
	}
}

// New connects to the Gemini API. The returned scorer must be closed.
func New(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	model := client.GenerativeModel(defaultModel)
	// Forcing a JSON MIME type keeps the parse failure rate down.
	model.ResponseMIMEType = "application/json"

	g := &Gemini{
		client: client,
		model:  model,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("aiscorer")
	}
	return g, nil
}

// Score returns a 0-100 relevance rating for one item.
func (g *Gemini) Score(ctx context.Context, title, body string) (int, error) {
	prompt := fmt.Sprintf(promptTemplate, title, body)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0, ErrEmptyResponse
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return 0, ErrUnexpectedPart
	}

	score, err := parseScore(string(text))
	if err != nil {
		return 0, err
	}

	g.log.Debug(ctx, "scored item",
		logger.String("title", title),
		logger.Int("score", score),
	)
	return score, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// parseScore extracts the score object from the model output. Models
// occasionally wrap the JSON in fences or prose, so the parse slices
// between the outermost braces first.
func parseScore(raw string) (int, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("%w: %q", ErrNoJSON, raw)
	}

	var res scoreResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return 0, fmt.Errorf("decode score: %w", err)
	}
	if res.Score < 0 || res.Score > 100 {
		return 0, fmt.Errorf("%w: %d", ErrScoreOutOfRange, res.Score)
	}
	return res.Score, nil
}
