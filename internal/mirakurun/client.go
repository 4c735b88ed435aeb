package mirakurun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TunerFetcher is the part of the API the connection watchdog needs.
// It is implemented by *Client and faked in tests.
type TunerFetcher interface {
	FetchTuners(ctx context.Context) ([]Tuner, error)
	OpenEventStream(ctx context.Context, query EventQuery) (*Stream, error)
}

// LogStreamer opens the server log stream.
type LogStreamer interface {
	OpenLogStream(ctx context.Context) (*Stream, error)
}

// Admin groups the request/response calls the status views issue directly.
type Admin interface {
	FetchStatus(ctx context.Context) (*Status, error)
	CheckVersion(ctx context.Context) (*Version, error)
	KillTunerProcess(ctx context.Context, index int) (*KillResult, error)
	UpdateVersion(ctx context.Context) (*Stream, error)
}

var (
	_ TunerFetcher = (*Client)(nil)
	_ LogStreamer  = (*Client)(nil)
	_ Admin        = (*Client)(nil)
)

// Client talks to the Mirakurun HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	userAgent string
}

const (
	defaultUserAgent    = "tunerwatch/0.1"
	requestTimeout      = 5 * time.Second
	streamHeaderTimeout = 5 * time.Second
	dialTimeout         = 5 * time.Second
)

// NewClient builds a Client for the server at addr, given as host:port or
// as a base URL.
func NewClient(addr string) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	// Streams stay open indefinitely, so they get a client without an
	// overall timeout; only connecting and the response headers are bounded.
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ResponseHeaderTimeout: streamHeaderTimeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		stream:    &http.Client{Transport: streamTransport},
		userAgent: defaultUserAgent,
	}, nil
}

// Endpoint joins host and port into the address form NewClient accepts.
func Endpoint(host, port string) string {
	return net.JoinHostPort(host, port)
}

// SetUserAgent overrides the User-Agent header sent with every request.
func (c *Client) SetUserAgent(ua string) {
	if ua = strings.TrimSpace(ua); ua != "" {
		c.userAgent = ua
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchTuners retrieves the full tuner list.
func (c *Client) FetchTuners(ctx context.Context) ([]Tuner, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []Tuner
	if err := c.do(ctx, http.MethodGet, "/api/tuners", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchStatus retrieves server version and process information.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Status
	if err := c.do(ctx, http.MethodGet, "/api/status", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CheckVersion retrieves the running and latest server versions.
func (c *Client) CheckVersion(ctx context.Context) (*Version, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Version
	if err := c.do(ctx, http.MethodGet, "/api/version", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// KillTunerProcess asks the server to kill the process bound to a tuner.
func (c *Client) KillTunerProcess(ctx context.Context, index int) (*KillResult, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if index < 0 {
		return nil, fmt.Errorf("tuner index must not be negative")
	}
	var payload KillResult
	path := "/api/tuners/" + strconv.Itoa(index) + "/process"
	if err := c.do(ctx, http.MethodDelete, path, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// OpenEventStream subscribes to server events. The stream only counts as
// open when the server answers 200.
func (c *Client) OpenEventStream(ctx context.Context, query EventQuery) (*Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if resource := strings.TrimSpace(query.Resource); resource != "" {
		values.Set("resource", resource)
	}
	if typ := strings.TrimSpace(query.Type); typ != "" {
		values.Set("type", typ)
	}
	rel := &url.URL{Path: "/api/events/stream", RawQuery: values.Encode()}
	return c.openStream(ctx, http.MethodGet, rel, exactlyOK)
}

// OpenLogStream subscribes to the server log.
func (c *Client) OpenLogStream(ctx context.Context) (*Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.openStream(ctx, http.MethodGet, &url.URL{Path: "/api/log/stream"}, exactlyOK)
}

// UpdateVersion asks the server to update itself. The returned stream
// carries the installer output.
func (c *Client) UpdateVersion(ctx context.Context) (*Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.openStream(ctx, http.MethodPut, &url.URL{Path: "/api/version/update"}, anySuccess)
}

// Stream is an open chunked response. Close releases the connection.
type Stream struct {
	StatusCode int
	Body       io.ReadCloser
}

// Close closes the response body.
func (s *Stream) Close() error {
	if s == nil || s.Body == nil {
		return nil
	}
	return s.Body.Close()
}

// StatusError reports a response with an unexpected status code.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
}

func exactlyOK(code int) bool { return code == http.StatusOK }

func anySuccess(code int) bool { return code >= 200 && code < 300 }

func (c *Client) openStream(ctx context.Context, method string, rel *url.URL, accept func(int) bool) (*Stream, error) {
	req, err := c.newRequest(ctx, method, rel)
	if err != nil {
		return nil, err
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if !accept(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, &StatusError{Path: rel.Path, StatusCode: resp.StatusCode}
	}
	return &Stream{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

func (c *Client) do(ctx context.Context, method, path string, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	req, err := c.newRequest(ctx, method, rel)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !anySuccess(resp.StatusCode) {
		return &StatusError{Path: rel.Path, StatusCode: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return nil, fmt.Errorf("server address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server address %q: missing host", addr)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
