package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"biaseval/pkg/models"
)

// DefaultHTTPTimeout bounds the whole HTTP exchange when a request carries
// no per-request timeout of its own.
const DefaultHTTPTimeout = 120 * time.Second

// ErrorKind buckets a submission failure for the worker's retry policy.
// Exactly three buckets exist at this boundary.
type ErrorKind int

const (
	// KindFatal covers every failure that is neither a rate limit nor a
	// transient server fault. The pipeline aborts on these.
	KindFatal ErrorKind = iota
	// KindRateLimited is an HTTP 429 from the endpoint.
	KindRateLimited
	// KindTransient is a server-side fault (5xx) or a transport error.
	KindTransient
)

// APIError is a classified failure from the completion endpoint
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Kind       ErrorKind
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// IsRateLimited reports whether err is a rate-limit signal from the API
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited
}

// IsTransient reports whether err is a transient server fault
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransient
}

// Client submits single chat completion requests to an OpenAI-compatible
// endpoint. It performs no retries itself; failures are classified and the
// caller decides whether to requeue.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given endpoint
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		logger: logger,
	}
}

// Complete submits one request and returns the parsed reply. The per-request
// timeout from params bounds the call; it keeps running even if ctx is
// canceled by the caller's shutdown, which is why workers pass an
// uncancelable context here.
func (c *Client) Complete(
	ctx context.Context,
	params models.RequestParameters,
	messages []models.Message,
) (*models.Reply, error) {
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	n := params.CompletionCount
	if n <= 0 {
		n = 1
	}
	body, err := json.Marshal(chatCompletionRequest{
		Model:       params.Model,
		Messages:    toWireMessages(messages),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		N:           n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL
	if endpoint[len(endpoint)-1] != '/' {
		endpoint += "/"
	}
	endpoint += "chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection failures and per-request timeouts count as transient
		// server faults. A canceled parent context stays fatal so shutdown
		// is not retried into.
		kind := KindTransient
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			kind = KindFatal
		}
		return nil, &APIError{
			Message: fmt.Sprintf("request failed: %v", err),
			Kind:    kind,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{
			Message: fmt.Sprintf("failed to read response: %v", err),
			Kind:    KindTransient,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Message:    fmt.Sprintf("request failed with status %d: %s", httpResp.StatusCode, string(respBody)),
			StatusCode: httpResp.StatusCode,
			Kind:       classifyStatus(httpResp.StatusCode),
		}
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
			apiErr.Type = errResp.Error.Type
			apiErr.Code = errResp.Error.Code
		}
		return nil, apiErr
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned in response")
	}

	return toReply(resp), nil
}

func classifyStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindTransient
	}
	return KindFatal
}
