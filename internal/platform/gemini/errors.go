package gemini

import "errors"

// Errors returned by the Gemini transcript adapter.
var (
	// ErrInvalidConfig indicates the adapter was constructed with an
	// unusable configuration (missing API key or model name).
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyTranscript indicates an analysis or summarization call was
	// made with no transcript text.
	ErrEmptyTranscript = errors.New("transcript text cannot be empty")

	// ErrInvalidResponse indicates the model returned no usable content.
	ErrInvalidResponse = errors.New("invalid response from gemini")
)
