package core

import (
	"math/rand/v2"
	"strings"
)

// GatewayPool holds the configured service replicas
type GatewayPool struct {
	endpoints []Endpoint
	intn      func(n int) int
}

// PoolOption configures a GatewayPool
type PoolOption func(*GatewayPool)

// WithIntn replaces the random source used for selection
func WithIntn(intn func(n int) int) PoolOption {
	return func(p *GatewayPool) { p.intn = intn }
}

// NewGatewayPool creates a pool from the configured endpoints. Blank entries are ignored
// and trailing slashes trimmed; an empty result is a configuration error.
func NewGatewayPool(endpoints []string, opts ...PoolOption) (*GatewayPool, error) {
	pool := &GatewayPool{intn: rand.IntN}
	for _, e := range endpoints {
		e = strings.TrimRight(strings.TrimSpace(e), "/")
		if e == "" {
			continue
		}
		pool.endpoints = append(pool.endpoints, Endpoint(e))
	}
	if len(pool.endpoints) == 0 {
		return nil, ConfigurationError("gateway.pool", ErrEmptyPool)
	}

	for _, opt := range opts {
		opt(pool)
	}
	return pool, nil
}

// Select returns a uniformly random endpoint. Each call is independent.
func (p *GatewayPool) Select() Endpoint {
	if len(p.endpoints) == 1 {
		return p.endpoints[0]
	}
	return p.endpoints[p.intn(len(p.endpoints))]
}

// Endpoints returns a copy of the pool members in configured order
func (p *GatewayPool) Endpoints() []Endpoint {
	out := make([]Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Size returns the number of endpoints
func (p *GatewayPool) Size() int {
	return len(p.endpoints)
}
