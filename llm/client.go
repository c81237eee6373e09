// Package llm is a provider-agnostic completion client. Callers ask
// for a capability; the model registry resolves it to a fallback chain
// of endpoints, and the client walks the chain with per-endpoint retry
// and circuit breaking.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hexlight/docuflow/model"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024

// Message is one chat turn. Role is "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request asks for one completion.
type Request struct {
	// Capability selects the model chain through the registry.
	Capability model.Capability

	// Messages is the chat history to send.
	Messages []Message

	// Temperature, when non-nil, overrides the endpoint default.
	Temperature *float64

	// MaxTokens, when positive, bounds the response length.
	MaxTokens int
}

// TokenUsage reports token consumption when the provider supplies it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a finished completion.
type Response struct {
	Content      string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

// Client sends completion requests. One Client serves all components
// concurrently.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithRetryConfig replaces the retry settings.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) { client.retryConfig = cfg }
}

// WithLogger replaces the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a client over the model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			// Long generations need room.
			Timeout: 180 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete resolves the capability to its fallback chain and walks it
// until an endpoint succeeds. Fatal errors stop the walk; transient
// errors retry on the same endpoint before falling through to the
// next.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	chain := c.registry.AvailableFallbackChain(req.Capability)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}

	var lastErr error
	for _, name := range chain {
		endpoint := c.registry.Endpoint(name)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", name)
			continue
		}

		resp, err := c.tryEndpoint(ctx, endpoint, name, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			c.logger.Warn("Fatal error, not trying fallbacks", "model", name, "error", err)
			return nil, err
		}
		c.logger.Warn("Endpoint failed, trying fallback",
			"model", name,
			"provider", endpoint.Provider,
			"error", err)
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// tryEndpoint runs the retry loop against one endpoint and updates its
// health.
func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, name string, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkSuccess(name)
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			// Auth and request-shape errors say nothing about
			// endpoint health.
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.retryConfig.backoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"model", name,
				"attempt", attempt,
				"backoff", backoff,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkFailure(name)
	return nil, lastErr
}

// doRequest executes a single HTTP round trip.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)
	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, ep.Model)
}

// classifyHTTPError sorts HTTP failures into transient and fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest:
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
