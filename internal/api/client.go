package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/http"
	"github.com/document-locker/locker/internal/logging"
)

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 64 * 1024

// retryLogger adapts the locker logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logging.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the locker file-storage API.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	logger  *logging.Logger

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger routes request logging through l.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// NewClient creates a client for cfg.APIURL.
//
// Requests are single-shot unless cfg.MaxRetries is raised. Non-2xx
// responses are always handed back to the caller untouched so the status
// and message survive.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}

	hc, err := http.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = constants.RetryInitialDelay
	rc.RetryWaitMax = constants.RetryMaxDelay
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		http:    rc,
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		logger:  logging.NewDefaultCLILogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	rc.Logger = retryLogger{log: c.logger}
	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// newRequest builds a request; body may be nil, an io.Reader, a
// retryablehttp.ReaderFunc or any value to be sent as JSON.
func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*retryablehttp.Request, error) {
	var rawBody interface{}
	isJSON := false

	switch b := body.(type) {
	case nil:
	case io.Reader, retryablehttp.ReaderFunc:
		rawBody = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rawBody = data
		isJSON = true
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send performs req. Transport failures become *NetworkError and non-2xx
// responses become *HTTPError with the body closed. On success the caller
// owns resp.Body.
func (c *Client) send(req *retryablehttp.Request) (*nethttp.Response, error) {
	method, path := req.Method, strings.TrimPrefix(req.URL.String(), c.baseURL)

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newHTTPError(method, path, resp.StatusCode, body)
	}
	return resp, nil
}

// doJSON performs a request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrMalformedResponse, err)
	}
	return nil
}
