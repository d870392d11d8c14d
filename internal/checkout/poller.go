package checkout

import (
	"context"
	"errors"
	"log/slog"
	"shop-checkout/internal/client"
	"shop-checkout/internal/dto"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultPaymentTimeout = 300 * time.Second
	DefaultOrderIDPrefix  = "ORD_"

	hookTimeout = 10 * time.Second
)

type StatusLookup interface {
	OrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error)
}

// Session is what the poller needs from the login session: reconciling the
// cart badge after a payment and dropping the token after a 401.
type Session interface {
	ReconcileCartCount(ctx context.Context) error
	Clear(ctx context.Context) error
}

type PollerConfig struct {
	Interval      time.Duration
	Timeout       time.Duration
	MaxAttempts   int // 0 means only Timeout bounds the session
	OrderIDPrefix string

	Clock  Clock
	Notify func(Outcome) // called once per session, after the state change
}

// Outcome is how a poll session ended.
type Outcome struct {
	State         State
	OrderID       string
	TransactionID string
	Err           error
}

// Poller watches one order's payment status until the backend reports a
// terminal status, the session times out, or Stop is called.
//
// Ticks, manual checks and the timeout may race. Every path funnels into
// finish, which only applies the first terminal result of the current
// session; anything arriving after the state left POLLING is dropped.
type Poller struct {
	lookup  StatusLookup
	session Session
	cfg     PollerConfig
	clock   Clock
	log     *slog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	sessionID string
	orderID   string
	attempts  int
	outcome   Outcome
	ticker    Ticker
	timer     Timer
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPoller(lookup StatusLookup, session Session, cfg PollerConfig, log *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPaymentTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	done := make(chan struct{})
	close(done)

	return &Poller{
		lookup:  lookup,
		session: session,
		cfg:     cfg,
		clock:   clock,
		log:     log,
		state:   StateIdle,
		done:    done,
	}
}

// Start begins polling orderID. It is a no-op returning false while a
// session is already polling.
func (p *Poller) Start(ctx context.Context, orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePolling {
		p.log.Debug("poll session already active", "session_id", p.sessionID, "order_id", p.orderID)
		return false
	}

	p.gen++
	p.state = StatePolling
	p.sessionID = uuid.NewString()
	p.orderID = NormalizeOrderID(orderID, p.cfg.OrderIDPrefix)
	p.attempts = 0
	p.outcome = Outcome{}
	p.done = make(chan struct{})
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.ticker = p.clock.NewTicker(p.cfg.Interval)
	p.timer = p.clock.NewTimer(p.cfg.Timeout)

	p.log.Info("poll session started",
		"session_id", p.sessionID,
		"order_id", p.orderID,
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	go p.run(p.ctx, p.gen, p.ticker, p.timer)
	return true
}

// Stop ends the current session, releasing the ticker, the timeout and any
// in-flight lookup, and resets the poller to IDLE. Safe to call any number
// of times.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked(context.Canceled)
}

func (p *Poller) stopLocked(cause error) {
	switch p.state {
	case StateIdle:
		return
	case StatePolling:
		p.releaseLocked()
		p.outcome = Outcome{State: StateIdle, OrderID: p.orderID, Err: cause}
		close(p.done)
		p.log.Info("poll session stopped", "session_id", p.sessionID, "order_id", p.orderID)
	}
	p.state = StateIdle
}

// Tick runs one status check for the current session, exactly as a timer
// tick would.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()
	p.check(ctx, gen)
}

// CheckNow is the user's manual re-check. It shares Tick's transition
// logic, so it can race a regular tick without double-firing.
func (p *Poller) CheckNow(ctx context.Context) {
	p.Tick(ctx)
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Done is closed when the current session ends, by outcome or Stop.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, gen uint64, ticker Ticker, timer Timer) {
	for {
		select {
		case <-ctx.Done():
			// the caller's context went away mid-poll: release like Stop
			p.mu.Lock()
			if p.gen == gen && p.state == StatePolling {
				p.stopLocked(ctx.Err())
			}
			p.mu.Unlock()
			return
		case <-ticker.C():
			// a slow lookup must not hold back the next tick or the timeout
			go p.check(ctx, gen)
		case <-timer.C():
			p.finish(ctx, gen, Outcome{State: StateTimedOut, Err: ErrPaymentTimeout})
			return
		}
	}
}

func (p *Poller) check(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if p.state != StatePolling || p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.attempts++
	attempt := p.attempts
	orderID := p.orderID
	sessionID := p.sessionID
	sessCtx := p.ctx
	p.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(sessCtx, cancel)
	defer stopAfter()

	log := p.log.With("session_id", sessionID, "order_id", orderID, "attempt", attempt)

	resp, err := p.lookup.OrderStatus(callCtx, orderID)
	if err != nil {
		if client.IsAuthError(err) {
			p.finish(ctx, gen, Outcome{State: StateUnauthorized, Err: err})
			return
		}
		if sessCtx.Err() != nil {
			return
		}
		// transient: one dropped response must not abort the confirmation
		log.Warn("order status check failed, still polling", "error", err)
		p.checkAttempts(ctx, gen, attempt)
		return
	}

	status, err := ParseStatus(resp.Status)
	if err != nil {
		log.Warn("ignoring order status", "error", err)
		p.checkAttempts(ctx, gen, attempt)
		return
	}

	if !status.Terminal() {
		log.Debug("order still pending")
		p.checkAttempts(ctx, gen, attempt)
		return
	}

	out := Outcome{State: stateFor(status), TransactionID: resp.Transaction()}
	if status != StatusPaid {
		out.Err = &TerminalPaymentError{OrderID: orderID, Status: status}
	}
	p.finish(ctx, gen, out)
}

func (p *Poller) checkAttempts(ctx context.Context, gen uint64, attempt int) {
	if p.cfg.MaxAttempts > 0 && attempt >= p.cfg.MaxAttempts {
		p.finish(ctx, gen, Outcome{State: StateTimedOut, Err: ErrStillPending})
	}
}

// finish applies a terminal outcome if the session is still the one that
// produced it and is still polling. It reports whether it won.
func (p *Poller) finish(ctx context.Context, gen uint64, out Outcome) bool {
	p.mu.Lock()
	if p.state != StatePolling || p.gen != gen {
		p.mu.Unlock()
		return false
	}
	out.OrderID = p.orderID
	p.state = out.State
	p.outcome = out
	p.releaseLocked()
	sessionID := p.sessionID
	done := p.done
	p.mu.Unlock()

	log := p.log.With("session_id", sessionID, "order_id", out.OrderID, "state", out.State.String())
	if out.Err != nil {
		log.Info("poll session ended", "error", out.Err)
	} else {
		log.Info("poll session ended", "transaction_id", out.TransactionID)
	}

	if p.session != nil {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
		switch out.State {
		case StateConfirmed:
			if err := p.session.ReconcileCartCount(hookCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("reconcile cart count", "error", err)
			}
		case StateUnauthorized:
			if err := p.session.Clear(hookCtx); err != nil {
				log.Warn("clear session", "error", err)
			}
		}
		cancel()
	}

	if p.cfg.Notify != nil {
		p.cfg.Notify(out)
	}
	close(done)
	return true
}

func (p *Poller) releaseLocked() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
