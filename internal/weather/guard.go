package weather

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = &UpstreamError{Endpoint: "*", Err: errors.New("circuit breaker open")}

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half_open"
)

type GuardConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// Metrics receives one observation per guarded call.
type Metrics interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
}

// Guard bounds every provider call with a timeout and stops calling a
// provider that keeps failing. It never retries.
type Guard struct {
	inner   Provider
	cfg     GuardConfig
	metrics Metrics
	now     func() time.Time

	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewGuard(inner Provider, cfg GuardConfig, metrics Metrics) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Guard{
		inner:   inner,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		state:   stateClosed,
	}
}

func (g *Guard) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	start := g.now()

	if !g.allowRequest() {
		g.observe(req.Endpoint, "circuit_open", 0)
		return nil, ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := g.inner.Fetch(callCtx, req)

	// a caller that went away says nothing about provider health
	if err != nil && ctx.Err() != nil {
		g.release()
		g.observe(req.Endpoint, "canceled", g.now().Sub(start))
		return nil, err
	}

	g.afterRequest(err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.observe(req.Endpoint, outcome, g.now().Sub(start))

	return body, err
}

// State reports the breaker state.
func (g *Guard) State() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(g.state)
}

func (g *Guard) observe(endpoint, outcome string, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.ObserveUpstream(endpoint, outcome, elapsed)
	}
}

func (g *Guard) allowRequest() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateClosed:
		return true
	case stateOpen:
		if g.now().Sub(g.openedAt) >= g.cfg.Cooldown {
			g.state = stateHalfOpen
			g.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if g.halfOpenInFlight >= g.cfg.HalfOpenMaxCalls {
			return false
		}
		g.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (g *Guard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == stateHalfOpen && g.halfOpenInFlight > 0 {
		g.halfOpenInFlight--
	}
}

func (g *Guard) afterRequest(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateHalfOpen && g.halfOpenInFlight > 0 {
		g.halfOpenInFlight--
	}

	if err == nil || isClientError(err) {
		g.consecutiveFailures = 0
		g.state = stateClosed
		return
	}

	g.consecutiveFailures++

	// a failed trial call reopens immediately
	if g.state == stateHalfOpen {
		g.state = stateOpen
		g.openedAt = g.now()
		return
	}

	if g.consecutiveFailures >= g.cfg.FailureThreshold {
		g.state = stateOpen
		g.openedAt = g.now()
	}
}

// isClientError reports a 4xx answer. The provider is up and rejected this
// query (e.g. an unknown city), so it says nothing about provider health.
func isClientError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500
}
