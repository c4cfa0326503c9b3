// Package httpclient builds the shared HTTP client used to reach the card APIs.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

type settings struct {
	timeout     time.Duration
	dial        time.Duration
	idle        time.Duration
	idlePerHost int
	proxy       func(*http.Request) (*url.URL, error)
}

// Option adjusts the client built by New.
type Option func(*settings)

// WithTimeout sets the per-request timeout. It also bounds the wait for
// response headers. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithIdleConnsPerHost sets how many keep-alive connections are kept per card API host.
func WithIdleConnsPerHost(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.idlePerHost = n
		}
	}
}

// WithProxy overrides the proxy selection. The default honors HTTP_PROXY and friends.
func WithProxy(proxy func(*http.Request) (*url.URL, error)) Option {
	return func(s *settings) { s.proxy = proxy }
}

// New returns a client tuned for a handful of JSON APIs polled at low volume.
func New(opts ...Option) *http.Client {
	s := settings{
		timeout:     DefaultTimeout,
		dial:        10 * time.Second,
		idle:        90 * time.Second,
		idlePerHost: 4,
		proxy:       http.ProxyFromEnvironment,
	}
	for _, opt := range opts {
		opt(&s)
	}

	dialer := &net.Dialer{Timeout: s.dial, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: s.timeout,
		Transport: &http.Transport{
			Proxy:                 s.proxy,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          s.idlePerHost * 5,
			MaxIdleConnsPerHost:   s.idlePerHost,
			IdleConnTimeout:       s.idle,
			TLSHandshakeTimeout:   s.dial,
			ResponseHeaderTimeout: s.timeout,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
