package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// Service Client
// =============================================================================

// ServiceClient is a JSON HTTP client that attaches a bearer token to every
// request. It is used by the CLI to call the API and by the peer client to
// call the factorization service.
type ServiceClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	backoff    time.Duration
}

// ServiceClientConfig configures the service client.
type ServiceClientConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	// RetryBackoff is the wait before the first retry; it doubles per attempt.
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// DefaultRetryBackoff is used when ServiceClientConfig leaves RetryBackoff unset.
const DefaultRetryBackoff = 200 * time.Millisecond

const maxRetryBackoff = 5 * time.Second

type tokenContextKey struct{}

// WithBearerToken overrides the client token for requests made with ctx.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func bearerTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

// NewServiceClient creates a new client.
func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &ServiceClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// BaseURL returns the normalized base URL.
func (c *ServiceClient) BaseURL() string {
	return c.baseURL
}

// Do executes an HTTP request, JSON-encoding body when it is not nil.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}
	return c.doWithRetry(ctx, method, path, payload, 0)
}

// doWithRetry retries only when the upstream reports itself unavailable.
func (c *ServiceClient) doWithRetry(ctx context.Context, method, path string, payload []byte, attempt int) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token := c.token
	if override, ok := bearerTokenFrom(ctx); ok {
		token = override
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
		resp.Body.Close()

		wait := c.backoff << attempt
		if wait <= 0 || wait > maxRetryBackoff {
			wait = maxRetryBackoff
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request failed: %w", ctx.Err())
		case <-time.After(wait):
		}
		return c.doWithRetry(ctx, method, path, payload, attempt+1)
	}

	return resp, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Get performs a GET request.
func (c *ServiceClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *ServiceClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// =============================================================================
// Responses
// =============================================================================

// APIError is a non-2xx response decoded from the standard error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// DecodeResponse decodes a JSON response into the target and closes the body.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, err := ReadAllWithLimit(resp.Body, 64<<10)
		if err != nil {
			return fmt.Errorf("read error response body: %w", err)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed ErrorResponse
		if !truncated && json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
			if truncated {
				apiErr.Message += "...(truncated)"
			}
		}
		return apiErr
	}

	if target == nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<20)); err != nil {
			return fmt.Errorf("discard response body: %w", err)
		}
		return nil
	}

	body, err := ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
