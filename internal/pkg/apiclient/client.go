// Package apiclient is the GET-only HTTP client shared by the card database sources.
// It retries rate limits and gateway failures with exponential backoff, honors
// Retry-After, trips a circuit breaker on repeated failures and decodes brotli
// and gzip bodies.
package apiclient

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"cardtrack/internal/core"
	"cardtrack/internal/httpclient"
)

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 16 << 20

// Backoff describes the wait between attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Factor, float64(n-1))
	if d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Config configures a Client.
type Config struct {
	Source      string // names the API in errors
	BaseURL     string
	MaxRetries  int
	Backoff     Backoff
	MaxBodySize int64
	Breaker     *BreakerConfig // nil disables circuit breaking
}

// DefaultConfig returns the settings every card source starts from.
func DefaultConfig(source, baseURL string) Config {
	return Config{
		Source:      source,
		BaseURL:     baseURL,
		MaxRetries:  3,
		Backoff:     Backoff{Initial: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2},
		MaxBodySize: DefaultMaxBodySize,
		Breaker:     &BreakerConfig{Failures: 5, Recoveries: 2, Cooldown: 30 * time.Second},
	}
}

// HeaderSetter decorates every outgoing request, typically with credentials.
type HeaderSetter func(req *http.Request)

// Client fetches JSON documents from one card API.
type Client struct {
	http    *http.Client
	cfg     Config
	headers HeaderSetter
	breaker *breaker
}

// New returns a Client on a default HTTP client.
func New(cfg Config, headers HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.New(), cfg, headers)
}

// NewWithHTTPClient returns a Client sending through hc.
func NewWithHTTPClient(hc *http.Client, cfg Config, headers HeaderSetter) *Client {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Backoff.Factor <= 0 {
		cfg.Backoff.Factor = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		http:    hc,
		cfg:     cfg,
		headers: headers,
		breaker: newBreaker(cfg.Breaker),
	}
}

// Source returns the configured source name.
func (c *Client) Source() string { return c.cfg.Source }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

type reply struct {
	status int
	header http.Header
	body   []byte
}

// Get fetches endpoint with query and returns the decoded body. Failures are
// *core.Error values tagged with the source, except context errors which are
// returned as is.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if !c.breaker.allow() {
		return nil, core.NewUpstreamError(c.cfg.Source, http.StatusServiceUnavailable,
			"circuit breaker is open, upstream temporarily unavailable", nil)
	}

	target := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for n := 0; ; n++ {
		var hint time.Duration
		r, err := c.send(ctx, target)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.breaker.failure()
			lastErr = err
		case r.status >= 200 && r.status < 300:
			c.breaker.success()
			return r.body, nil
		case isRetryable(r.status):
			c.breaker.failure()
			hint = parseRetryAfter(r.header.Get("Retry-After"))
			lastErr = core.ParseUpstreamError(c.cfg.Source, r.status, r.body, nil)
		default:
			if r.status >= 500 {
				c.breaker.failure()
			}
			return nil, core.ParseUpstreamError(c.cfg.Source, r.status, r.body, nil)
		}

		if n == c.cfg.MaxRetries {
			return nil, lastErr
		}
		wait := max(c.cfg.Backoff.Delay(n+1), min(hint, c.cfg.Backoff.Max))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// send performs one attempt.
func (c *Client) send(ctx context.Context, target string) (reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return reply{}, core.NewInvalidRequestError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	if c.headers != nil {
		c.headers(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, core.NewUpstreamError(c.cfg.Source, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp, c.cfg.MaxBodySize)
	if err != nil {
		return reply{}, core.NewUpstreamError(c.cfg.Source, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}
	return reply{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// readBody decodes the body according to Content-Encoding. Accept-Encoding is
// set by hand, so the transport leaves gzip undecoded too.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return body, nil
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
