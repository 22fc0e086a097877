// Package llm wraps the Genkit model API behind a small completion client
// with streaming, retry, and proactive rate limiting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// streamBuffer is the capacity of the event channel returned by
// CompleteStream. A slow consumer applies backpressure to generation
// instead of buffering the whole response in memory.
const streamBuffer = 16

// ErrEmptyPrompt indicates a completion was requested with no prompt text.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Config contains all required parameters for the completion client.
type Config struct {
	Genkit *genkit.Genkit
	Logger *slog.Logger

	// ModelName is the provider-qualified model name,
	// e.g. "googleai/gemini-2.5-flash".
	ModelName   string
	Temperature float32
	MaxTokens   int

	// RetryConfig configures backoff for transient failures
	// (zero-value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter is optional proactive rate limiting (nil = use default).
	RateLimiter *rate.Limiter
}

// Client issues completions against a single configured model.
//
// All configuration values are captured immutably at construction time
// to ensure thread-safe concurrent access.
type Client struct {
	g           *genkit.Genkit
	logger      *slog.Logger
	modelName   string
	temperature float32
	maxTokens   int
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
}

// New creates a completion client.
func New(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	return &Client{
		g:           cfg.Genkit,
		logger:      logger,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retryConfig: retryConfig,
		rateLimiter: rl,
	}, nil
}

// ModelName returns the provider-qualified model name the client targets.
func (c *Client) ModelName() string {
	return c.modelName
}

// Complete generates a full response for the prompt (non-streaming).
func (c *Client) Complete(ctx context.Context, prompt string) (*Result, error) {
	resp, err := c.generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return c.result(resp), nil
}

// CompleteStream generates a response for the prompt and delivers it
// incrementally on the returned channel.
//
// The channel carries zero or more "content" events followed by exactly one
// terminal event: "done" on success, "error" on failure (including context
// cancellation). The channel is closed after the terminal event. The caller
// must drain the channel or cancel ctx to release the producer goroutine.
func (c *Client) CompleteStream(ctx context.Context, prompt string) <-chan StreamEvent {
	events := make(chan StreamEvent, streamBuffer)

	go func() {
		defer close(events)

		send := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		cb := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			if !send(StreamEvent{Type: EventContent, Content: text, Model: c.modelName}) {
				return cbCtx.Err()
			}
			return nil
		}

		resp, err := c.generate(ctx, prompt, cb)
		if err != nil {
			// Terminal error event. If ctx is already gone the consumer
			// stopped reading; the closed channel is the signal.
			send(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}

		usage := c.result(resp).Usage
		c.logger.Debug("stream completed",
			"model", c.modelName,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
		)
		send(StreamEvent{Type: EventDone, Model: c.modelName})
	}()

	return events
}

// generate runs a single generation with rate limiting and retry.
// cb may be nil for non-streaming calls.
func (c *Client) generate(ctx context.Context, prompt string, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	opts := []ai.GenerateOption{
		ai.WithPrompt(prompt),
		ai.WithModelName(c.modelName),
		ai.WithConfig(map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		}),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(cb))
	}

	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		// Rate limit each attempt, retries included.
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		// Non-retryable error, fail immediately.
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}

		// Streaming calls cannot be retried once chunks have been
		// delivered: the consumer has already seen partial output.
		if cb != nil {
			return nil, fmt.Errorf("generate (streaming): %w", err)
		}

		// Last attempt, don't sleep.
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retryConfig.MaxRetries, time.Since(start), lastErr)
}

// result converts a model response into the client's Result type.
func (c *Client) result(resp *ai.ModelResponse) *Result {
	r := &Result{Text: resp.Text(), Model: c.modelName}
	if resp.Usage != nil {
		r.Usage = Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return r
}
