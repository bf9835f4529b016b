package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ragserver/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client calls the remote LLM for answer generation. Rate-limited calls are
// retried under a bounded policy; every other failure propagates unchanged.
type Client struct {
	llm   *openai.LLM
	retry RetryPolicy
}

// NewClient builds the generation client once at startup.
func NewClient(cfg *config.GenerationConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}
	return &Client{
		llm: llm,
		retry: RetryPolicy{
			Enabled:     cfg.Retry.Enabled,
			MaxAttempts: cfg.Retry.MaxAttempts,
			DefaultWait: time.Duration(cfg.Retry.DefaultWaitSecs) * time.Second,
		},
	}, nil
}

// Generate produces a completion for the prompt, blocking the caller until a
// response or final failure.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.retry.Do(ctx, func() (string, error) {
		msgs := []llms.MessageContent{
			{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
			},
		}
		resp, err := c.llm.GenerateContent(ctx, msgs)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("generation provider returned no choices")
		}
		return resp.Choices[0].Content, nil
	})
}

// RetryPolicy retries rate-limited calls a bounded number of times, sleeping
// for the provider-suggested wait when one can be parsed from the error text
// and DefaultWait otherwise. Sleep is injectable for tests.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
	DefaultWait time.Duration
	Sleep       func(time.Duration)
}

// Do runs call until it succeeds, fails with a non-rate-limit error, or the
// attempt budget is spent.
func (p RetryPolicy) Do(ctx context.Context, call func() (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if !p.Enabled || attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRateLimit(err) || attempt == attempts {
			return "", err
		}
		wait := p.DefaultWait
		if d, ok := ParseSuggestedWait(err.Error()); ok {
			wait = d
		}
		log.Warn().Err(err).Dur("wait", wait).Int("attempt", attempt).Msg("generation rate limited, retrying")
		sleep(wait)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// IsRateLimit reports whether the provider error looks like an HTTP 429.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}

var suggestedWaitRe = regexp.MustCompile(`(?i)(?:in|after)\s+([0-9]+(?:\.[0-9]+)?)\s*s`)

// ParseSuggestedWait extracts a "try again in Ns" style wait from a provider
// error payload.
func ParseSuggestedWait(msg string) (time.Duration, bool) {
	m := suggestedWaitRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
