package weather

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	body  json.RawMessage
	fn    func(ctx context.Context, req Request) (json.RawMessage, error)
}

func (s *stubProvider) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls++
	fn, body, err := s.fn, s.body, s.err
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return body, err
}

type recordedMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordedMetrics) ObserveUpstream(_, outcome string, _ time.Duration) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}

func TestGuard_OpensAfterThresholdAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inner := &stubProvider{err: &UpstreamError{Endpoint: "forecast", Status: 500, Err: errors.New("boom")}}
	metrics := &recordedMetrics{}

	g := NewGuard(inner, GuardConfig{FailureThreshold: 2, Cooldown: 10 * time.Second}, metrics)
	g.now = func() time.Time { return now }

	ctx := context.Background()
	req := Request{Endpoint: EndpointForecast}

	for i := 0; i < 2; i++ {
		_, err := g.Fetch(ctx, req)
		require.ErrorIs(t, err, ErrUpstream)
	}
	assert.Equal(t, "open", g.State())

	_, err := g.Fetch(ctx, req)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 2, inner.calls, "open circuit must not call the provider")

	// cooldown passes, trial call succeeds, circuit closes
	now = now.Add(11 * time.Second)
	inner.mu.Lock()
	inner.err, inner.body = nil, json.RawMessage(`{}`)
	inner.mu.Unlock()

	_, err = g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "closed", g.State())

	assert.Equal(t, []string{"error", "error", "circuit_open", "ok"}, metrics.outcomes)
}

func TestGuard_FailedTrialReopens(t *testing.T) {
	now := time.Now()
	inner := &stubProvider{err: &UpstreamError{Endpoint: "forecast", Err: errors.New("down")}}
	g := NewGuard(inner, GuardConfig{FailureThreshold: 1, Cooldown: time.Second}, nil)
	g.now = func() time.Time { return now }

	_, _ = g.Fetch(context.Background(), Request{})
	require.Equal(t, "open", g.State())

	now = now.Add(2 * time.Second)
	_, err := g.Fetch(context.Background(), Request{})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "open", g.State())
}

func TestGuard_EnforcesTimeout(t *testing.T) {
	inner := &stubProvider{fn: func(ctx context.Context, _ Request) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, &UpstreamError{Endpoint: "forecast", Err: ctx.Err()}
	}}
	g := NewGuard(inner, GuardConfig{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := g.Fetch(context.Background(), Request{})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuard_CallerCancellationDoesNotTrip(t *testing.T) {
	inner := &stubProvider{fn: func(ctx context.Context, _ Request) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, &UpstreamError{Err: ctx.Err()}
	}}
	g := NewGuard(inner, GuardConfig{FailureThreshold: 1, Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Fetch(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, "closed", g.State())
}

func TestGuard_ClientErrorsDoNotTrip(t *testing.T) {
	inner := &stubProvider{err: &UpstreamError{Endpoint: EndpointCurrent, Status: 404, Err: errors.New("city not found")}}
	g := NewGuard(inner, GuardConfig{FailureThreshold: 2}, nil)

	for i := 0; i < 5; i++ {
		_, err := g.Fetch(context.Background(), Request{Endpoint: EndpointCurrent})
		require.ErrorIs(t, err, ErrUpstream)
	}

	assert.Equal(t, "closed", g.State())
	assert.Equal(t, 5, inner.calls)
}
