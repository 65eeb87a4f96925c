// Package apiclient reads authoritative state from the application's HTTP
// API, the source of truth the reconciler confirms against.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Options configures a Client
type Options struct {
	BaseURL  string
	Token    string // sent as a bearer token when set
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Client is a small JSON API client with retries
type Client struct {
	base  string
	token string
	http  *retryablehttp.Client
}

// StatusError is returned for non-2xx responses that survive retries
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Body)
}

// New returns a Client for opts.BaseURL
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rc := retryablehttp.NewClient()
	rc.Logger = leveled{log.Named("api").Sugar()}
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	// hand the final response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{base: strings.TrimRight(opts.BaseURL, "/"), token: opts.Token, http: rc}, nil
}

// Do sends a request and returns the response body. body, when not nil, is
// encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	url := c.base + "/" + strings.TrimLeft(path, "/")
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(truncate(string(data), 200))}
	}
	return data, nil
}

// Field fetches path and extracts field, a gjson path such as
// "data.members.#(email==\"a@b.test\").status"
func (c *Client) Field(ctx context.Context, path, field string) (gjson.Result, error) {
	data, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("GET %s: response is not JSON", path)
	}
	res := gjson.GetBytes(data, field)
	if !res.Exists() {
		return res, fmt.Errorf("GET %s: field %q not found", path, field)
	}
	return res, nil
}

// Signal returns a reader of field at path as a string, for use as the
// reconciler's authoritative signal
func (c *Client) Signal(path, field string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		res, err := c.Field(ctx, path, field)
		if err != nil {
			return "", err
		}
		return res.String(), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// leveled adapts zap to retryablehttp's LeveledLogger
type leveled struct {
	s *zap.SugaredLogger
}

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
