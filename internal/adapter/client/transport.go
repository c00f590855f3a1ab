package client

import (
	"context"
	"net"
	"net/http"
	"time"
)

const (
	DefaultDialTimeout           = 30 * time.Second
	DefaultKeepAlive             = 60 * time.Second
	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 25
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 0
)

type TransportOptions struct {
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	MaxIdleConnsPerHost   int
}

// NewHTTPClient builds the client shared by every backend adapter. It sets no
// overall Timeout, that would cut long streams short, the invoke timeout and
// ResponseHeaderTimeout bound the wait for headers instead.
func NewHTTPClient(opts TransportOptions) *http.Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		// llm responses are mostly already compact, compression only adds latency
		DisableCompression: true,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout:   opts.DialTimeout,
				KeepAlive: DefaultKeepAlive,
			}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// tokens should leave as soon as they are written
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	return &http.Client{
		Transport: transport,
		// backends answer chat calls directly, a redirect is a misconfiguration
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
