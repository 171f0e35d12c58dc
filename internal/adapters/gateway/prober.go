package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type probeRequest struct {
	Proxy     string `json:"proxy"`
	ProxyUser string `json:"proxyUser,omitempty"`
	ProxyPass string `json:"proxyPass,omitempty"`
}

type probeResponse struct {
	Status string `json:"status"`
}

// HTTPProber checks proxies through the service's probe endpoint
type HTTPProber struct {
	client          *http.Client
	probePath       string
	sendCredentials bool
	limiter         *rate.Limiter
	timeout         time.Duration
	logger          *zap.Logger
}

// NewHTTPProber creates a new prober. limiter may be nil.
func NewHTTPProber(
	client *http.Client,
	probePath string,
	sendCredentials bool,
	limiter *rate.Limiter,
	timeout time.Duration,
	logger *zap.Logger,
) *HTTPProber {
	return &HTTPProber{
		client:          client,
		probePath:       probePath,
		sendCredentials: sendCredentials,
		limiter:         limiter,
		timeout:         timeout,
		logger:          logger,
	}
}

// Probe performs one request/response check of the proxy
func (p *HTTPProber) Probe(ctx context.Context, endpoint core.Endpoint, proxy core.ProxySpec) (*core.ProbeResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, core.ConnectionError("gateway.probe", fmt.Errorf("rate limiter: %w", err))
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	payload := probeRequest{Proxy: proxy.String()}
	if p.sendCredentials {
		payload = probeRequest{Proxy: proxy.Address, ProxyUser: proxy.Username, ProxyPass: proxy.Password}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe request: %w", err)
	}

	url := string(endpoint) + p.probePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, core.ConnectionError("gateway.probe", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.ConnectionError("gateway.probe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, core.ServiceError("gateway.probe", resp.StatusCode)
	}

	var out probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.SchemaError("gateway.probe", fmt.Errorf("failed to decode probe response: %w", err))
	}

	p.logger.Debug("Proxy probe answered",
		zap.String("url", url),
		zap.String("proxy", proxy.Address),
		zap.String("status", out.Status),
		zap.Duration("duration", time.Since(start)))

	return &core.ProbeResult{Proxy: proxy, Status: out.Status}, nil
}
