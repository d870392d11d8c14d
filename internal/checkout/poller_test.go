package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"shop-checkout/internal/client"
	"shop-checkout/internal/dto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire delivers one tick unless the ticker was stopped, like time.Ticker.
func (t *fakeTicker) Fire() {
	if t.Stopped() {
		return
	}
	select {
	case t.c <- time.Now():
	default:
	}
}

type fakeTimer struct {
	fakeTicker
}

func (t *fakeTimer) Stop() bool {
	t.fakeTicker.Stop()
	return true
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) NewTimer(time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fakeTicker{c: make(chan time.Time, 1)}}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers), len(c.timers)
}

func (c *fakeClock) lastTicker() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

func (c *fakeClock) lastTimer() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

type lookupResult struct {
	resp *dto.OrderStatusResponse
	err  error
}

// scriptedLookup answers status requests from a script; once the script is
// exhausted it keeps answering PENDING.
type scriptedLookup struct {
	mu     sync.Mutex
	script []lookupResult
	ids    []string
	gate   chan struct{} // when set, every call blocks until closed
}

func (l *scriptedLookup) OrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error) {
	l.mu.Lock()
	l.ids = append(l.ids, orderID)
	var r lookupResult
	if len(l.script) > 0 {
		r = l.script[0]
		l.script = l.script[1:]
	} else {
		r = lookupResult{resp: &dto.OrderStatusResponse{Status: "PENDING"}}
	}
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return r.resp, r.err
}

func (l *scriptedLookup) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

func status(s string) lookupResult {
	return lookupResult{resp: &dto.OrderStatusResponse{Status: s}}
}

type MockSession struct {
	mock.Mock
}

func (m *MockSession) ReconcileCartCount(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSession) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPoller(lookup StatusLookup, session Session, clock *fakeClock, notify func(Outcome)) *Poller {
	return NewPoller(lookup, session, PollerConfig{
		Interval:      3 * time.Second,
		Timeout:       300 * time.Second,
		OrderIDPrefix: DefaultOrderIDPrefix,
		Clock:         clock,
		Notify:        notify,
	}, quietLogger())
}

// --- tests ---

func TestPoller_StartTwiceIsIdempotent(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(&scriptedLookup{}, nil, clock, nil)
	defer p.Stop()

	assert.True(t, p.Start(context.Background(), "42"))
	assert.False(t, p.Start(context.Background(), "42"))

	tickers, timers := clock.counts()
	assert.Equal(t, 1, tickers)
	assert.Equal(t, 1, timers)
	assert.Equal(t, StatePolling, p.State())
}

func TestPoller_PendingPendingPaid(t *testing.T) {
	clock := &fakeClock{}
	lookup := &scriptedLookup{script: []lookupResult{
		status("PENDING"),
		status("PENDING"),
		{resp: &dto.OrderStatusResponse{Status: "PAID", TransactionID: "txn-1"}},
	}}
	session := new(MockSession)
	session.On("ReconcileCartCount", mock.Anything).Return(nil).Once()

	var outcomes []Outcome
	p := newTestPoller(lookup, session, clock, func(o Outcome) { outcomes = append(outcomes, o) })
	ctx := context.Background()

	require.True(t, p.Start(ctx, "ORD_42"))
	p.Tick(ctx)
	p.Tick(ctx)
	assert.Equal(t, StatePolling, p.State())
	p.Tick(ctx)

	assert.Equal(t, StateConfirmed, p.State())
	require.Len(t, outcomes, 1)
	assert.Equal(t, "42", outcomes[0].OrderID)
	assert.Equal(t, "txn-1", outcomes[0].TransactionID)
	assert.NoError(t, outcomes[0].Err)

	// nothing after PAID: neither a manual tick nor the (stopped) ticker
	p.Tick(ctx)
	clock.lastTicker().Fire()
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, lookup.calls(), 3)
	assert.True(t, clock.lastTicker().Stopped())
	assert.True(t, clock.lastTimer().Stopped())
	session.AssertExpectations(t)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after a terminal status")
	}
}

func TestPoller_TickerDrivesChecks(t *testing.T) {
	clock := &fakeClock{}
	lookup := &scriptedLookup{script: []lookupResult{status("PAID")}}
	p := newTestPoller(lookup, nil, clock, nil)

	require.True(t, p.Start(context.Background(), "7"))
	clock.lastTicker().Fire()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poll session did not finish")
	}
	assert.Equal(t, StateConfirmed, p.State())
	assert.Equal(t, []string{"7"}, lookup.calls())
}

func TestPoller_TimeoutSelfTerminates(t *testing.T) {
	clock := &fakeClock{}
	lookup := &scriptedLookup{}
	p := newTestPoller(lookup, nil, clock, nil)
	ctx := context.Background()

	require.True(t, p.Start(ctx, "42"))
	p.Tick(ctx)
	clock.lastTimer().Fire()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout did not end the session")
	}

	out := p.Outcome()
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrPaymentTimeout)
	assert.True(t, clock.lastTicker().Stopped())

	before := len(lookup.calls())
	p.Tick(ctx)
	clock.lastTicker().Fire()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, lookup.calls(), before)
}

func TestPoller_TerminalStatuses(t *testing.T) {
	cases := map[string]State{
		"FAILED":    StateFailed,
		"CANCELLED": StateCancelled,
		"EXPIRED":   StateExpired,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			p := newTestPoller(&scriptedLookup{script: []lookupResult{status(raw)}}, nil, &fakeClock{}, nil)
			ctx := context.Background()

			require.True(t, p.Start(ctx, "42"))
			p.Tick(ctx)

			out := p.Outcome()
			assert.Equal(t, want, out.State)

			var termErr *TerminalPaymentError
			require.True(t, errors.As(out.Err, &termErr))
			assert.Equal(t, Status(raw), termErr.Status)
			assert.NotErrorIs(t, out.Err, ErrPaymentTimeout)
		})
	}
}

func TestPoller_TransientErrorsKeepPolling(t *testing.T) {
	lookup := &scriptedLookup{script: []lookupResult{
		{err: errors.New("connection reset")},
		{err: &client.APIError{StatusCode: 502, Body: "bad gateway"}},
		status("SETTLING"),
		status("PAID"),
	}}
	p := newTestPoller(lookup, nil, &fakeClock{}, nil)
	ctx := context.Background()

	require.True(t, p.Start(ctx, "42"))
	for i := 0; i < 3; i++ {
		p.Tick(ctx)
		assert.Equal(t, StatePolling, p.State())
	}
	p.Tick(ctx)
	assert.Equal(t, StateConfirmed, p.State())
}

func TestPoller_UnauthorizedStopsOnceAcrossConcurrentTicks(t *testing.T) {
	gate := make(chan struct{})
	lookup := &scriptedLookup{gate: gate, script: []lookupResult{
		{err: client.ErrUnauthorized},
		{err: client.ErrUnauthorized},
		{err: client.ErrUnauthorized},
		{err: client.ErrUnauthorized},
		{err: client.ErrUnauthorized},
	}}
	session := new(MockSession)
	session.On("Clear", mock.Anything).Return(nil).Once()

	var mu sync.Mutex
	redirects := 0
	p := newTestPoller(lookup, session, &fakeClock{}, func(o Outcome) {
		if o.State == StateUnauthorized {
			mu.Lock()
			redirects++
			mu.Unlock()
		}
	})
	ctx := context.Background()
	require.True(t, p.Start(ctx, "42"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.CheckNow(ctx)
		}()
	}
	require.Eventually(t, func() bool { return len(lookup.calls()) == 5 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, StateUnauthorized, p.State())
	assert.Equal(t, 1, redirects)
	session.AssertExpectations(t)
}

func TestPoller_ConcurrentTerminalResultsFirstWins(t *testing.T) {
	gate := make(chan struct{})
	lookup := &scriptedLookup{gate: gate, script: []lookupResult{
		status("PAID"),
		status("PAID"),
		status("PAID"),
	}}
	session := new(MockSession)
	session.On("ReconcileCartCount", mock.Anything).Return(nil).Once()

	var mu sync.Mutex
	var outcomes []Outcome
	p := newTestPoller(lookup, session, &fakeClock{}, func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})
	ctx := context.Background()
	require.True(t, p.Start(ctx, "42"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Tick(ctx)
		}()
	}
	require.Eventually(t, func() bool { return len(lookup.calls()) == 3 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Len(t, outcomes, 1)
	session.AssertExpectations(t)
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(&scriptedLookup{}, nil, clock, nil)

	p.Stop()
	assert.Equal(t, StateIdle, p.State())

	require.True(t, p.Start(context.Background(), "42"))
	p.Stop()
	assert.Equal(t, StateIdle, p.State())
	assert.True(t, clock.lastTicker().Stopped())
	assert.True(t, clock.lastTimer().Stopped())

	assert.NotPanics(t, p.Stop)
	assert.Equal(t, StateIdle, p.State())

	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	lookup := &scriptedLookup{gate: gate, script: []lookupResult{status("PAID")}}
	var notified bool
	p := newTestPoller(lookup, nil, &fakeClock{}, func(Outcome) { notified = true })
	ctx := context.Background()
	require.True(t, p.Start(ctx, "42"))

	finished := make(chan struct{})
	go func() {
		p.Tick(ctx)
		close(finished)
	}()
	require.Eventually(t, func() bool { return len(lookup.calls()) == 1 }, time.Second, time.Millisecond)

	p.Stop()
	close(gate)
	<-finished

	assert.Equal(t, StateIdle, p.State())
	assert.False(t, notified)
}

func TestPoller_RestartAfterTerminal(t *testing.T) {
	clock := &fakeClock{}
	lookup := &scriptedLookup{script: []lookupResult{status("FAILED"), status("PAID")}}
	p := newTestPoller(lookup, nil, clock, nil)
	ctx := context.Background()

	require.True(t, p.Start(ctx, "42"))
	p.Tick(ctx)
	assert.Equal(t, StateFailed, p.State())

	require.True(t, p.Start(ctx, "42"))
	p.Tick(ctx)
	assert.Equal(t, StateConfirmed, p.State())

	tickers, timers := clock.counts()
	assert.Equal(t, 2, tickers)
	assert.Equal(t, 2, timers)
}

func TestPoller_NormalizesPrefixedOrderID(t *testing.T) {
	lookup := &scriptedLookup{}
	ctx := context.Background()

	for _, id := range []string{"ORD_42", "42"} {
		p := newTestPoller(lookup, nil, &fakeClock{}, nil)
		require.True(t, p.Start(ctx, id))
		p.Tick(ctx)
		p.Tick(ctx)
		p.Stop()
	}

	assert.Equal(t, []string{"42", "42", "42", "42"}, lookup.calls())
}

func TestPoller_MaxAttemptsEndsStillPending(t *testing.T) {
	lookup := &scriptedLookup{}
	p := NewPoller(lookup, nil, PollerConfig{
		MaxAttempts: 3,
		Clock:       &fakeClock{},
	}, quietLogger())
	ctx := context.Background()

	require.True(t, p.Start(ctx, "42"))
	p.Tick(ctx)
	p.Tick(ctx)
	assert.Equal(t, StatePolling, p.State())
	p.Tick(ctx)

	out := p.Outcome()
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrStillPending)
}

func TestPoller_ParentContextCancelReleases(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(&scriptedLookup{}, nil, clock, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, p.Start(ctx, "42"))
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelling the parent context should end the session")
	}
	assert.Equal(t, StateIdle, p.State())
	assert.True(t, clock.lastTicker().Stopped())
	assert.ErrorIs(t, p.Outcome().Err, context.Canceled)
}
