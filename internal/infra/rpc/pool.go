// Package rpc maintains a prioritized pool of JSON-RPC endpoints and exposes
// one atomically-swappable "current provider" handle to the rest of the
// system.
//
// Endpoints are probed lazily with a bounded timeout: a round trip that also
// confirms the chain id. On probe failure the pool walks the remaining
// candidates in priority order; the first success is published via an atomic
// swap so concurrent readers never observe a half-updated reference. When
// every candidate is down the pool reports a typed ErrUnavailable instead of
// blocking, and the next use retries lazily.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/opengrants/walletd/internal/metrics"
)

// State is the pool's health flag for the external health-check collaborator.
type State string

const (
	// StateConnected means the primary endpoint is active.
	StateConnected State = "connected"
	// StateDegraded means a lower-priority endpoint is active.
	StateDegraded State = "degraded"
	// StateDisconnected means no endpoint is active.
	StateDisconnected State = "disconnected"
)

var (
	// ErrNoEndpointsConfigured is returned at configuration time when the
	// candidate list is empty.
	ErrNoEndpointsConfigured = errors.New("no rpc endpoints configured")

	// ErrUnavailable is returned when every candidate endpoint failed its
	// probe. Callers should treat it as transient and retry on next use.
	ErrUnavailable = errors.New("all rpc endpoints unavailable")

	// ErrChainIDMismatch is returned when an endpoint answers for a
	// different chain than configured.
	ErrChainIDMismatch = errors.New("endpoint chain id mismatch")
)

// EndpointStatus is the per-endpoint probe history exposed to the health
// monitor.
type EndpointStatus struct {
	URL         string    `json:"url"`
	Priority    int       `json:"priority"`
	LastProbeOK bool      `json:"last_probe_ok"`
	LastProbeAt time.Time `json:"last_probe_at"`
	LastError   string    `json:"last_error,omitempty"`
}

type endpoint struct {
	url      string
	priority int

	mu          sync.Mutex
	lastProbeAt time.Time
	lastErr     error
}

// active is the published provider reference. It is replaced wholesale on
// failover, never mutated in place.
type active struct {
	client *ethclient.Client
	index  int
	url    string
}

// Pool manages the candidate endpoints for one chain.
type Pool struct {
	chainID      *big.Int
	probeTimeout time.Duration
	endpoints    []*endpoint

	current atomic.Pointer[active]

	// probeMu serializes failover walks; readers never take it.
	probeMu sync.Mutex

	log *slog.Logger
}

// NewPool configures a pool over the ordered candidate URLs. Position in the
// slice is priority. The pool starts unconnected; nothing is dialed here.
func NewPool(urls []string, chainID int64, probeTimeout time.Duration) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpointsConfigured
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}

	endpoints := make([]*endpoint, len(urls))
	for i, u := range urls {
		endpoints[i] = &endpoint{url: u, priority: i}
	}

	metrics.RPCActiveEndpoint.Set(-1)

	return &Pool{
		chainID:      big.NewInt(chainID),
		probeTimeout: probeTimeout,
		endpoints:    endpoints,
		log:          slog.Default(),
	}, nil
}

// Client returns the active provider handle, probing candidates in priority
// order on first use or after a full outage. Concurrent callers are safe; the
// handle is read through an atomic pointer.
func (p *Pool) Client(ctx context.Context) (*ethclient.Client, error) {
	if a := p.current.Load(); a != nil {
		return a.client, nil
	}
	a, err := p.failover(ctx)
	if err != nil {
		return nil, err
	}
	return a.client, nil
}

// Reprobe re-attempts higher-priority endpoints on demand, e.g. before a
// critical transaction. If every candidate fails the pool transitions to
// disconnected.
func (p *Pool) Reprobe(ctx context.Context) error {
	_, err := p.failover(ctx)
	return err
}

// State reports connected, degraded or disconnected.
func (p *Pool) State() State {
	a := p.current.Load()
	switch {
	case a == nil:
		return StateDisconnected
	case a.index == 0:
		return StateConnected
	default:
		return StateDegraded
	}
}

// ActiveURL returns the URL of the active endpoint, or empty when
// disconnected.
func (p *Pool) ActiveURL() string {
	if a := p.current.Load(); a != nil {
		return a.url
	}
	return ""
}

// Endpoints returns per-endpoint probe history for the health report.
func (p *Pool) Endpoints() []EndpointStatus {
	out := make([]EndpointStatus, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		ep.mu.Lock()
		st := EndpointStatus{
			URL:         ep.url,
			Priority:    ep.priority,
			LastProbeOK: !ep.lastProbeAt.IsZero() && ep.lastErr == nil,
			LastProbeAt: ep.lastProbeAt,
		}
		if ep.lastErr != nil {
			st.LastError = ep.lastErr.Error()
		}
		ep.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Close releases the active client, if any.
func (p *Pool) Close() {
	if a := p.current.Swap(nil); a != nil {
		a.client.Close()
	}
	metrics.RPCActiveEndpoint.Set(-1)
}

// failover walks every candidate from highest priority and publishes the
// first success. Only one walk runs at a time.
func (p *Pool) failover(ctx context.Context) (*active, error) {
	p.probeMu.Lock()
	defer p.probeMu.Unlock()

	prev := p.current.Load()
	var probeErrs []error

	for i, ep := range p.endpoints {
		client, err := p.probe(ctx, ep)
		if err != nil {
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", ep.url, err))
			continue
		}

		next := &active{client: client, index: i, url: ep.url}
		p.current.Store(next)
		metrics.RPCActiveEndpoint.Set(float64(i))

		if prev != nil && prev.client != client {
			prev.client.Close()
		}
		if i > 0 {
			metrics.RPCFailoversTotal.Inc()
			p.log.Warn("rpc pool degraded to lower-priority endpoint",
				"endpoint", ep.url, "priority", i)
		} else if prev == nil || prev.index != 0 {
			p.log.Info("rpc pool connected", "endpoint", ep.url)
		}
		return next, nil
	}

	p.current.Store(nil)
	metrics.RPCActiveEndpoint.Set(-1)
	if prev != nil {
		prev.client.Close()
	}

	p.log.Error("rpc pool disconnected, all endpoints failed",
		"candidates", len(p.endpoints))
	return nil, errors.Join(ErrUnavailable, errors.Join(probeErrs...))
}

// probe dials the endpoint and confirms reachability and chain id within the
// bounded timeout. Timeouts are connectivity failures, never indefinite
// blocks.
func (p *Pool) probe(ctx context.Context, ep *endpoint) (*ethclient.Client, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	start := time.Now()
	client, err := ethclient.DialContext(probeCtx, ep.url)
	if err == nil {
		var gotID *big.Int
		gotID, err = client.ChainID(probeCtx)
		if err == nil && gotID.Cmp(p.chainID) != 0 {
			err = fmt.Errorf("%w: want %s, got %s", ErrChainIDMismatch, p.chainID, gotID)
		}
		if err != nil {
			client.Close()
		}
	}

	ep.mu.Lock()
	ep.lastProbeAt = time.Now()
	ep.lastErr = err
	ep.mu.Unlock()

	metrics.ProbeLatency.WithLabelValues(ep.url).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCProbesTotal.WithLabelValues(ep.url, "failure").Inc()
		return nil, err
	}
	metrics.RPCProbesTotal.WithLabelValues(ep.url, "success").Inc()
	return client, nil
}
