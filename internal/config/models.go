package config

import (
	"fmt"
	"time"
)

// GatewayConfig represents the verification service endpoints
type GatewayConfig struct {
	Endpoints  []string
	VerifyPath string
	ProbePath  string
}

// TransportConfig represents the HTTP transport settings
type TransportConfig struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	ProbeTimeout          time.Duration
	ReadBufferSize        int
	EgressSOCKS5          string
	EgressUser            string
	EgressPass            string
}

// ProxyConfig represents how proxies are forwarded and probed
type ProxyConfig struct {
	SendCredentials bool
	ProbeRate       float64
	ProbeBurst      int
}

// HistoryConfig represents the result history repository
type HistoryConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
	PostgresMaxConns int
}

// ExportConfig represents where result files are written
type ExportConfig struct {
	Dir string
}

// GetGateway returns the gateway configuration
func (c *Config) GetGateway() GatewayConfig {
	return GatewayConfig{
		Endpoints:  c.GetStringSlice("gateway.endpoints"),
		VerifyPath: c.GetString("gateway.verify_path"),
		ProbePath:  c.GetString("gateway.probe_path"),
	}
}

// GetTransport returns the transport configuration
func (c *Config) GetTransport() (TransportConfig, error) {
	var (
		tc  TransportConfig
		err error
	)
	if tc.DialTimeout, err = c.GetDuration("transport.dial_timeout"); err != nil {
		return tc, err
	}
	if tc.ResponseHeaderTimeout, err = c.GetDuration("transport.response_header_timeout"); err != nil {
		return tc, err
	}
	if tc.IdleConnTimeout, err = c.GetDuration("transport.idle_conn_timeout"); err != nil {
		return tc, err
	}
	if tc.ProbeTimeout, err = c.GetDuration("transport.probe_timeout"); err != nil {
		return tc, err
	}
	tc.ReadBufferSize = c.GetInt("transport.read_buffer_size")
	tc.EgressSOCKS5 = c.GetString("transport.egress_socks5")
	tc.EgressUser = c.GetString("transport.egress_user")
	tc.EgressPass = c.GetString("transport.egress_pass")
	return tc, nil
}

// GetProxy returns the proxy configuration
func (c *Config) GetProxy() ProxyConfig {
	return ProxyConfig{
		SendCredentials: c.GetBool("proxy.send_credentials"),
		ProbeRate:       c.GetFloat64("proxy.probe_rate"),
		ProbeBurst:      c.GetInt("proxy.probe_burst"),
	}
}

// GetHistory returns the history configuration
func (c *Config) GetHistory() (HistoryConfig, error) {
	ttl, err := c.GetDuration("history.ttl")
	if err != nil {
		return HistoryConfig{}, err
	}
	cleanup, err := c.GetDuration("history.cleanup_frequency")
	if err != nil {
		return HistoryConfig{}, err
	}
	if ttl <= 0 {
		return HistoryConfig{}, fmt.Errorf("history.ttl must be positive, got %s", ttl)
	}

	return HistoryConfig{
		Enabled:          c.GetBool("history.enabled"),
		Type:             c.GetString("history.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("history.sqlite_path"),
		MySQLDSN:         c.GetString("history.mysql_dsn"),
		PostgresDSN:      c.GetString("history.postgres_dsn"),
		PostgresMaxConns: c.GetInt("history.postgres_max_conns"),
	}, nil
}

// GetExport returns the export configuration
func (c *Config) GetExport() ExportConfig {
	return ExportConfig{
		Dir: c.GetString("export.dir"),
	}
}
