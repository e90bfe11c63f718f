// Package llm wraps Genkit text generation behind a small client with
// retry, backoff and proactive rate limiting.
//
// Router, translator and synthesizer all talk to the hosted model through
// this client; they depend on the Generator interface they each define,
// keeping them testable with fakes.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Config contains required parameters for the Client.
type Config struct {
	Genkit      *genkit.Genkit
	ModelName   string  // e.g. "googleai/gemini-2.5-flash"
	Temperature float32 // 0.1 keeps routing and SQL generation near-deterministic
	Logger      *slog.Logger

	// RetryConfig uses defaults when zero-valued.
	RetryConfig RetryConfig

	// RateLimiter is optional; nil installs the default
	// (10 requests/sec sustained, burst of 30).
	RateLimiter *rate.Limiter
}

// Client invokes the hosted chat model. Safe for concurrent use;
// all configuration is captured immutably at construction.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:           cfg.Genkit,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		retryConfig: retryConfig,
		rateLimiter: rl,
		logger:      cfg.Logger,
	}, nil
}

// Generate produces a text completion for prompt.
// Transient provider failures are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generateWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// generateWithRetry executes the generation with exponential backoff.
// Each attempt is rate limited.
func (c *Client) generateWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := genkit.Generate(ctx, c.g,
			ai.WithPrompt(prompt),
			ai.WithModelName(c.modelName),
			ai.WithConfig(&genai.GenerateContentConfig{
				Temperature: genai.Ptr(c.temperature),
			}),
		)
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("generation succeeded after retry", "attempts", attempt+1)
			}
			return resp, nil
		}

		lastErr = err
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying generation after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-timeAfter(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries: %w", c.retryConfig.MaxRetries, lastErr)
}
