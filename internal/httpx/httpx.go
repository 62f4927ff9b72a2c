package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// snippetLimit caps how much of an error body is kept for diagnostics.
const snippetLimit = 2 << 10

// maxBody caps how much of a successful response is read.
const maxBody = 8 << 20

// ErrDecode marks a 2xx response whose body is not valid JSON.
var ErrDecode = errors.New("decode response")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=httpxmock -destination=httpxmock/mock_http_client.go -source=httpx.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "quotelog/1.0"}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s -> %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Endpoint is an API base URL plus the client, headers and query parameters
// sent with every request.
type Endpoint struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	query      url.Values
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(e *Endpoint) {
		if baseURL != "" {
			e.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(e *Endpoint) {
		if httpClient != nil {
			e.httpClient = httpClient
		}
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(e *Endpoint) {
		for key, values := range header {
			for _, value := range values {
				e.header.Add(key, value)
			}
		}
	}
}

// WithQuery sets additional query parameters to be sent with each request.
func WithQuery(key, value string) Option {
	return func(e *Endpoint) {
		if value != "" {
			e.query.Set(key, value)
		}
	}
}

// NewEndpoint creates an Endpoint rooted at baseURL.
func NewEndpoint(baseURL string, options ...Option) *Endpoint {
	e := &Endpoint{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	for _, option := range options {
		option(e)
	}
	return e
}


// GetJSON issues a GET for path with the endpoint's query merged into query and
// decodes the body with UseNumber. Non-2xx responses yield *StatusError.
func (e *Endpoint) GetJSON(ctx context.Context, path string, query url.Values) (any, error) {
	q := maps.Clone(e.query)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u := e.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = e.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, snippetLimit))
		return nil, &StatusError{Method: http.MethodGet, URL: redact(req.URL), StatusCode: res.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v with %s", ErrDecode, err, Snippet(b))
	}
	return body, nil
}

// Snippet shortens b for log output.
func Snippet(b []byte) string {
	if len(b) > snippetLimit {
		return string(b[:snippetLimit]) + "..."
	}
	return string(b)
}

// credentialParams never appear in logged URLs.
var credentialParams = []string{"apikey", "api_key", "access_key"}

func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	for _, k := range credentialParams {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}
