package relevance

import (
	"regexp"
	"strings"
)

// Fallback estimator constants.
const (
	pointsPerMatch = 15
	maxScore       = 100
	maxKeywords    = 10
)

var wordSplitter = regexp.MustCompile(`[^a-z0-9+#.\-]+`)

// defaultVocabulary is the fixed technical vocabulary used when no AI score
// is available. Multi-word entries match as substrings of the lowercased
// text.
func defaultVocabulary() []string {
	return []string{
		"golang", "go", "rust", "python", "typescript", "javascript",
		"kubernetes", "docker", "container", "serverless", "terraform",
		"database", "postgres", "sqlite", "redis", "kafka", "grpc",
		"api", "compiler", "runtime", "concurrency", "goroutine",
		"distributed", "microservice", "latency", "cache", "queue",
		"linux", "kernel", "security", "encryption", "tls", "oauth",
		"machine learning", "llm", "neural network", "ai", "gpu",
		"webassembly", "wasm", "protocol", "http", "tcp", "dns",
		"open source", "cli", "framework", "algorithm", "benchmark",
	}
}

// MatchKeywords returns the vocabulary entries found in the title or body,
// de-duplicated and capped at maxKeywords.
func MatchKeywords(vocabulary []string, title, body string) []string {
	text := strings.ToLower(title + " " + body)
	words := make(map[string]struct{})
	for _, w := range wordSplitter.Split(text, -1) {
		if w != "" {
			words[w] = struct{}{}
		}
	}

	var matched []string
	seen := make(map[string]struct{})
	for _, term := range vocabulary {
		if _, dup := seen[term]; dup {
			continue
		}
		var hit bool
		if strings.ContainsRune(term, ' ') {
			hit = strings.Contains(text, term)
		} else {
			_, hit = words[term]
		}
		if hit {
			seen[term] = struct{}{}
			matched = append(matched, term)
			if len(matched) == maxKeywords {
				break
			}
		}
	}
	return matched
}

// FallbackScore converts a keyword match count into a 0-100 score.
func FallbackScore(matches int) int {
	score := matches * pointsPerMatch
	if score > maxScore {
		return maxScore
	}
	return score
}
