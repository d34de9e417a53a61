package aiscorer

import "errors"

var (
	// ErrMissingAPIKey means the scorer was built without credentials.
	ErrMissingAPIKey = errors.New("gemini api key is required")

	// ErrEmptyResponse means the model returned no candidates.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrUnexpectedPart means the first candidate part was not text.
	ErrUnexpectedPart = errors.New("unexpected response part type")

	// ErrNoJSON means no JSON object could be located in the output.
	ErrNoJSON = errors.New("no json object in model output")

	// ErrScoreOutOfRange means the model returned a score outside 0-100.
	ErrScoreOutOfRange = errors.New("score out of range")
)
