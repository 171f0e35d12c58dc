package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// ClientConfig holds transport options for talking to the verification service.
// There is no whole-request timeout: verification responses stream for as long as the
// job runs, and cancellation comes from the request context.
type ClientConfig struct {
	DialTimeout     time.Duration
	KeepAlive       time.Duration
	TLSHandshake    time.Duration
	ResponseHeader  time.Duration
	IdleConnTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// Optional SOCKS5 proxy the client itself uses to reach the service.
	// This is unrelated to the proxy forwarded to the service with each job.
	EgressSOCKS5 string
	EgressUser   string
	EgressPass   string
}

// DefaultClientConfig returns the transport defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshake:        5 * time.Second,
		ResponseHeader:      30 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
	}
}

// NewHTTPClient builds the HTTP client used by the submitter and the prober
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
	}

	if cfg.EgressSOCKS5 != "" {
		dial, err := socks5DialContext(cfg, dialer)
		if err != nil {
			return nil, err
		}
		tr.Proxy = nil
		tr.DialContext = dial
	}

	return &http.Client{Transport: tr}, nil
}

func socks5DialContext(cfg ClientConfig, base *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *proxy.Auth
	if cfg.EgressUser != "" || cfg.EgressPass != "" {
		auth = &proxy.Auth{User: cfg.EgressUser, Password: cfg.EgressPass}
	}

	d, err := proxy.SOCKS5("tcp", cfg.EgressSOCKS5, auth, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}
