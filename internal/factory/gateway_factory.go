package factory

import (
	"fmt"
	"net/http"

	"github.com/mikey/email-verifier/internal/adapters/gateway"
	"github.com/mikey/email-verifier/internal/config"
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GatewayFactory creates the pieces that talk to the verification service
type GatewayFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGatewayFactory creates a new gateway factory
func NewGatewayFactory(cfg *config.Config, logger *zap.Logger) *GatewayFactory {
	return &GatewayFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePool creates the endpoint pool
func (f *GatewayFactory) CreatePool() (*core.GatewayPool, error) {
	gw := f.cfg.GetGateway()
	pool, err := core.NewGatewayPool(gw.Endpoints)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Created gateway pool", zap.Int("size", pool.Size()))
	return pool, nil
}

// CreateHTTPClient creates the shared HTTP client
func (f *GatewayFactory) CreateHTTPClient() (*http.Client, error) {
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return nil, fmt.Errorf("invalid transport configuration: %w", err)
	}

	cc := gateway.DefaultClientConfig()
	cc.DialTimeout = tc.DialTimeout
	cc.ResponseHeader = tc.ResponseHeaderTimeout
	cc.IdleConnTimeout = tc.IdleConnTimeout
	cc.EgressSOCKS5 = tc.EgressSOCKS5
	cc.EgressUser = tc.EgressUser
	cc.EgressPass = tc.EgressPass

	if cc.EgressSOCKS5 != "" {
		f.logger.Info("Using SOCKS5 egress proxy", zap.String("address", cc.EgressSOCKS5))
	}
	return gateway.NewHTTPClient(cc)
}

// CreateSubmitter creates the upload submitter
func (f *GatewayFactory) CreateSubmitter(client *http.Client) core.Submitter {
	return gateway.NewHTTPSubmitter(
		client,
		f.cfg.GetGateway().VerifyPath,
		f.cfg.GetProxy().SendCredentials,
		f.logger,
	)
}

// CreateProber creates the rate-limited proxy prober
func (f *GatewayFactory) CreateProber(client *http.Client) (core.ProxyProber, error) {
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return nil, fmt.Errorf("invalid transport configuration: %w", err)
	}
	pc := f.cfg.GetProxy()

	var limiter *rate.Limiter
	if pc.ProbeRate > 0 {
		burst := pc.ProbeBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(pc.ProbeRate), burst)
	}

	return gateway.NewHTTPProber(
		client,
		f.cfg.GetGateway().ProbePath,
		pc.SendCredentials,
		limiter,
		tc.ProbeTimeout,
		f.logger,
	), nil
}

// CreateClassifier creates the event classifier with the configured unknown-status policy
func (f *GatewayFactory) CreateClassifier() (*core.EventClassifier, error) {
	policy, err := core.ParseUnknownStatusPolicy(f.cfg.GetString("classify.unknown_status"))
	if err != nil {
		return nil, err
	}
	return core.NewEventClassifier(policy), nil
}
