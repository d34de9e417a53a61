package aiscorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError error
		expected    int
	}{
		{
			name:     "plain json",
			input:    `{"score": 85}`,
			expected: 85,
		},
		{
			name: "json wrapped in fences",
			input: "```json\n" + `{"score": 42}` + "\n```",
			expected: 42,
		},
		{
			name:     "json with surrounding prose",
			input:    `Here is my rating: {"score": 7} hope that helps`,
			expected: 7,
		},
		{
			name:     "boundary values",
			input:    `{"score": 0}`,
			expected: 0,
		},
		{
			name:        "score above range",
			input:       `{"score": 140}`,
			expectError: ErrScoreOutOfRange,
		},
		{
			name:        "negative score",
			input:       `{"score": -3}`,
			expectError: ErrScoreOutOfRange,
		},
		{
			name:        "no json at all",
			input:       `I cannot rate this item.`,
			expectError: ErrNoJSON,
		},
		{
			name:        "malformed json",
			input:       `{"score": high}`,
			expectError: nil, // generic decode error
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := parseScore(tt.input)

			switch {
			case tt.expectError != nil:
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectError))
			case tt.name == "malformed json":
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, score)
			}
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
