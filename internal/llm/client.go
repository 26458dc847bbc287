package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Defaults target a local Ollama server through its OpenAI-compatible API.
const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "gemma3:12b"
)

// Config configures the chat-completion client.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries counts additional attempts after a 429 or 5xx reply.
	MaxRetries  int
	BackoffBase time.Duration
	Logger      hclog.Logger
}

// Client is a Completer backed by an OpenAI-compatible endpoint.
type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  hclog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama" // local servers ignore the key
	}

	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = cfg.BaseURL
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = cfg.Timeout
	oc.HTTPClient = httpClient

	c := &Client{
		api:    openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: cfg.Logger.Named("llm"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	backoff := c.cfg.BackoffBase
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("completion returned no choices")
			}
			c.logger.Debug("completion", "model", c.cfg.Model, "duration", time.Since(start), "tokens", resp.Usage.TotalTokens)
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.cfg.MaxRetries {
			break
		}
		c.logger.Warn("completion failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
