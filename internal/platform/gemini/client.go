package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/kalinov/scribe-api/internal/config"
	"google.golang.org/genai"
)

const (
	analyzePrompt = `You are analyzing the transcript of a recorded media file.
Identify the main topics, the key points made about each, and any action
items or decisions. Respond in plain text with one section per topic.

Transcript:
%s`

	summarizePrompt = `Summarize the following transcript of a recorded
media file in a few short paragraphs. Preserve concrete facts, names and
decisions; drop filler and repetition.

Transcript:
%s`
)

// Client implements the pipeline's TranscriptAnalyzer and
// TranscriptSummarizer interfaces on top of the Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	// generate is the raw model call, injectable for tests.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewClient creates a Gemini-backed transcript adapter.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrInvalidConfig, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}

	retryDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if retryDelay < time.Second {
		retryDelay = 2 * time.Second
	}

	c := &Client{
		client:     client,
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With(slog.String("component", "gemini_client")),
	}
	c.generate = c.generateContent

	return c, nil
}

// AnalyzeTranscript produces a structured topic analysis of the transcript.
func (c *Client) AnalyzeTranscript(ctx context.Context, transcript string) (string, error) {
	if transcript == "" {
		return "", ErrEmptyTranscript
	}

	return c.callWithRetry(ctx, fmt.Sprintf(analyzePrompt, transcript))
}

// SummarizeTranscript produces a prose summary of the transcript.
func (c *Client) SummarizeTranscript(ctx context.Context, transcript string) (string, error) {
	if transcript == "" {
		return "", ErrEmptyTranscript
	}

	return c.callWithRetry(ctx, fmt.Sprintf(summarizePrompt, transcript))
}

// callWithRetry calls the model with exponential backoff and jitter.
// Invalid-response errors are permanent and returned immediately;
// everything else is treated as transient.
func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		c.logger.Debug("calling gemini",
			slog.String("model", c.model),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.maxRetries+1))

		text, err := c.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if errors.Is(err, ErrInvalidResponse) {
			return "", err
		}

		c.logger.Warn("gemini call failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))

		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))
		jitter := time.Duration(rng.Int63n(int64(c.retryDelay)))

		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("gemini call failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// generateContent performs a single model call.
func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response text", ErrInvalidResponse)
	}

	return text, nil
}
