// Package api provides the HTTP client for the study assistant server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/google/uuid"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
)

const (
	// transportGrace lets the per-call context deadline fire before the
	// transport limit, so expiry surfaces as a TimeoutError.
	transportGrace = 5 * time.Second

	maxErrorBodySize = 4096
	maxJSONBodySize  = 8 << 20

	headerRequestID = "X-Request-ID"
)

// Client talks to the study assistant server
type Client struct {
	httpClient tls_client.HttpClient
	serverURL  string
	timeout    time.Duration
	logger     *slog.Logger
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithServerURL sets the server base URL
func WithServerURL(serverURL string) ClientOption {
	return func(c *Client) {
		c.serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	}
}

// WithTimeout bounds every request, including the streamed reply.
// Zero disables the limit.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc tls_client.HttpClient) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logging.OrDiscard(logger)
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		serverURL: models.DefaultServerURL,
		logger:    logging.Discard(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if err := validateServerURL(client.serverURL); err != nil {
		return nil, err
	}

	if client.httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutMilliseconds(int(transportTimeout(client.timeout).Milliseconds())),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// transportTimeout returns the HTTP client limit for a request timeout d.
// Zero means no limit, matching a zero request timeout.
func transportTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + transportGrace
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return nil
}

// ServerURL returns the configured base URL
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Close releases idle connections. Further calls fail.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) endpoint(path string) string {
	return c.serverURL + path
}

// withTimeout applies the client timeout to ctx, if any
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// newRequest builds a request with the default headers and a fresh request id
func (c *Client) newRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Request, string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", models.ContentTypeJSON)
	}

	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)

	return req, requestID, nil
}

// do sends req and maps transport failures and context errors
func (c *Client) do(ctx context.Context, req *http.Request, operation, path string) (*http.Response, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, apierrors.NewTimeoutError(operation)
			}
			return nil, ctxErr
		}
		return nil, apierrors.NewNetworkErrorWithEndpoint(operation, path, err)
	}
	return resp, nil
}

// doJSON performs a JSON request and decodes the response into out
func (c *Client) doJSON(ctx context.Context, method, path, operation string, body, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, requestID, err := c.newRequest(ctx, method, path, body, models.DefaultHeaders())
	if err != nil {
		return err
	}

	logger := c.logger.With("request_id", requestID, "method", method, "path", path)
	start := time.Now()

	resp, err := c.do(ctx, req, operation, path)
	if err != nil {
		logger.Warn("request failed", "error", err)
		return err
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	logger.Debug("request finished", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp, path, operation)
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBodySize))
	if err != nil {
		return apierrors.NewNetworkErrorWithEndpoint(operation, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierrors.NewAPIErrorWithBody(resp.StatusCode, path,
			fmt.Sprintf("failed to decode %s response: %v", operation, err), truncateBody(data))
	}
	return nil
}

// newStatusError reads up to 4KB of the body for diagnostics
func newStatusError(resp *http.Response, path, operation string) *apierrors.APIError {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	}
	return apierrors.NewAPIErrorWithBody(resp.StatusCode, path, operation+" failed", string(body))
}

func truncateBody(data []byte) string {
	if len(data) > maxErrorBodySize {
		data = data[:maxErrorBodySize]
	}
	return string(data)
}
