// Package api is the request gateway to the TestAI service. A single Client
// resolves the base address, applies default headers, injects the bearer
// token of the current session into every call, and normalizes failures
// into *Error values.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"testai/internal/logger"
)

const maxErrorBody = 64 << 10

// TokenSource yields the bearer token to attach at dispatch time, or "" for
// an anonymous call. *session.Store satisfies it.
type TokenSource interface {
	Token() string
}

type noToken struct{}

func (noToken) Token() string { return "" }

// Client executes calls against the service. The endpoint groups are the
// intended surface; Do is exported for them and for tests.
type Client struct {
	baseURL string
	http    *http.Client
	header  http.Header
	log     *log.Logger

	Auth       *AuthService
	Projects   *ProjectsService
	Tests      *TestsService
	Executions *ExecutionsService
	Dashboard  *DashboardService
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped with token injection.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeader adds a default header sent on every call.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client rooted at baseURL (the service root joined with
// the API path segment, e.g. "https://host/api").
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api: base url %q has no host", baseURL)
	}
	if tokens == nil {
		tokens = noToken{}
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{},
		header: http.Header{
			"Content-Type": []string{"application/json"},
			"Accept":       []string{"application/json"},
		},
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Copy so a caller-supplied client is not mutated.
	hc := *c.http
	hc.Transport = &authTransport{base: hc.Transport, tokens: tokens}
	c.http = &hc
	c.log = c.log.WithPrefix("api")

	c.Auth = &AuthService{c: c}
	c.Projects = &ProjectsService{c: c}
	c.Tests = &TestsService{c: c}
	c.Executions = &ExecutionsService{c: c}
	c.Dashboard = &DashboardService{c: c}
	return c, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if q := query.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// Do executes one call. On a 2xx response the body is decoded into out:
// nil discards it, an io.Writer receives the raw bytes, anything else is
// JSON-decoded. Every other outcome is returned as *Error.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	body, contentType, err := r.encode()
	if err != nil {
		return fmt.Errorf("api: encode %s %s: %w", r.Method, r.Path, err)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.url(r.Path, r.Query), body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", r.Method, r.Path, err)
	}
	for k, vs := range c.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("call failed", "method", r.Method, "path", r.Path, "request_id", requestID, "err", err)
		return &Error{Method: r.Method, Path: r.Path, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("call",
		"method", r.Method,
		"path", r.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Method:     r.Method,
			Path:       r.Path,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(data),
			Body:       data,
		}
	}

	if err := decodeBody(resp.Body, out); err != nil {
		return &Error{Method: r.Method, Path: r.Path, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func decodeBody(body io.Reader, out any) error {
	switch dst := out.(type) {
	case nil:
		_, err := io.Copy(io.Discard, body)
		return err
	case io.Writer:
		_, err := io.Copy(dst, body)
		return err
	default:
		err := json.NewDecoder(body).Decode(out)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
