package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// ExecuteResult is the backend's answer to a command.
type ExecuteResult struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// HistoryEntry is one recorded command. Timestamp is kept as sent by the
// backend, which does not include a zone.
type HistoryEntry struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client issues requests against an origin, resolving paths through the base
// URL.
type Client struct {
	origin     *url.URL
	baseURL    string
	hasBaseURL bool
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL pins a base URL for this client instead of the process-wide
// defaults.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
		c.hasBaseURL = true
	}
}

// New creates a client for origin, e.g. "http://localhost:3000".
func New(origin string, opts ...Option) (*Client, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, errors.Wrap(err, "parse origin")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("origin %q must use http or https", origin)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}

	c := &Client{
		origin:     u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the base URL requests are currently resolved through.
func (c *Client) BaseURL() string {
	if c.hasBaseURL {
		return c.baseURL
	}
	cfg, _ := Defaults()
	return cfg.BaseURL
}

// ResolveURL turns a request path into the absolute URL the client will hit.
func (c *Client) ResolveURL(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse path %q", path)
	}
	if ref.IsAbs() {
		return ref, nil
	}

	full, err := url.Parse(combineURLs(c.BaseURL(), path))
	if err != nil {
		return nil, errors.Wrapf(err, "combine %q with base URL", path)
	}

	return c.origin.ResolveReference(full), nil
}

// combineURLs joins base and rel with exactly one slash between them.
func combineURLs(base, rel string) string {
	if base == "" {
		return rel
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

// Execute sends command to the backend's execute endpoint.
func (c *Client) Execute(ctx context.Context, command string) (*ExecuteResult, error) {
	var res ExecuteResult
	if err := c.do(ctx, http.MethodPost, "/execute", map[string]string{"command": command}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// History returns the commands the backend has recorded.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	var res struct {
		History []HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/history", nil, &res); err != nil {
		return nil, err
	}
	return res.History, nil
}

// ClearHistory asks the backend to forget recorded commands.
func (c *Client) ClearHistory(ctx context.Context) error {
	var res struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/clear-history", struct{}{}, &res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New("clear-history: backend reported failure")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	u, err := c.ResolveURL(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}

	return nil
}
