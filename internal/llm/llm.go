package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/literable/internal/metrics"
)

// ErrTransient marks a failed request-response cycle with the model endpoint:
// transport errors, timeouts, non-2xx replies and replies without choices.
var ErrTransient = errors.New("llm call failed")

const (
	APITypeOpenAI = "openai"
	APITypeAzure  = "azure"

	DefaultMaxTokens = 1500
	DefaultTimeout   = 30 * time.Second
)

// CallError describes a failed completion call.
type CallError struct {
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm call failed (http %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm call failed: %v", e.Err)
}

func (e *CallError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// Retryable reports whether repeating the call may succeed.
func (e *CallError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500 && e.StatusCode <= 599:
		return true
	case e.StatusCode != 0:
		return false
	}
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	// Refused or reset connections and other transport failures.
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(e.Err, &netErr) || errors.As(e.Err, &urlErr)
}

// Completer returns the raw text of one chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string // model name, or deployment name for Azure
	APIType    string // "openai" or "azure"
	APIVersion string // Azure only
	MaxTokens  int
	Timeout    time.Duration
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// New creates a new LLM client.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var config openai.ClientConfig
	switch strings.ToLower(cfg.APIType) {
	case "", APITypeOpenAI:
		config = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
	case APITypeAzure:
		if cfg.BaseURL == "" {
			return nil, errors.New("azure endpoint URL is required")
		}
		config = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			config.APIVersion = cfg.APIVersion
		}
		// Deployment names are used verbatim.
		config.AzureModelMapperFunc = func(model string) string { return model }
	default:
		return nil, fmt.Errorf("unknown API type %q (want %s or %s)", cfg.APIType, APITypeOpenAI, APITypeAzure)
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

// Complete sends a system and a user message and returns the assistant's text.
// Every failure is a *CallError wrapping ErrTransient.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		metrics.LLMRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", &CallError{StatusCode: statusCode(err), Err: err}
	}
	metrics.LLMRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		return "", &CallError{Err: errors.New("LLM returned no choices")}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw, "finish_reason", resp.Choices[0].FinishReason)
	return raw, nil
}

// Ping checks that the endpoint is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return &CallError{StatusCode: statusCode(err), Err: err}
	}
	return nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
