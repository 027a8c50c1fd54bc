// Package webhook publishes session summaries with an HTTP POST.
//
// The body is the JSON-encoded adapter.SessionCompletedEvent. Network errors,
// 5xx and 429 answers are retried with exponential backoff; any other 4xx
// ends the publish.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/lfs-agent/adapter"
	"github.com/pithecene-io/lfs-agent/iox"
	"github.com/pithecene-io/lfs-agent/types"
)

const (
	// DefaultTimeout bounds one POST, response included.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is how many times a failed POST is repeated.
	DefaultRetries = 3
	// SessionHeader carries the session ID so receivers can drop duplicates
	// produced by retries.
	SessionHeader = "X-Lfs-Agent-Session"
)

// maxErrorBody caps how much of a rejected response is kept in StatusError.
const maxErrorBody = 512

// Config configures the webhook adapter.
type Config struct {
	// URL is the endpoint summaries are POSTed to. Required, http or https.
	URL string
	// Headers are sent with every request, after the built-in ones.
	Headers map[string]string
	// Timeout bounds one request; zero means DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first.
	Retries int
}

// Adapter posts session summaries to a fixed URL.
type Adapter struct {
	url     string
	headers http.Header
	retries int
	client  *http.Client
}

// New validates cfg and builds an adapter. No request is sent.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must be http or https, got %q", cfg.URL)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", "git-lfs-agent/"+types.Version)
	for name, value := range cfg.Headers {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("webhook header name must not be empty")
		}
		headers.Set(name, value)
	}

	return &Adapter{
		url:     u.String(),
		headers: headers,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Publish POSTs the event. 4xx responses are not retried.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "webhook", a.retries, rejected, func(ctx context.Context) error {
		return a.post(ctx, event.SessionID, body)
	})
}

// StatusError reports a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	// Body is the start of the response body, if any.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// rejected reports a 4xx answer other than 429.
func rejected(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Code >= 400 && statusErr.Code < 500 && statusErr.Code != http.StatusTooManyRequests
}

// post sends one request and returns nil on 2xx.
func (a *Adapter) post(ctx context.Context, sessionID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = a.headers.Clone()
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
