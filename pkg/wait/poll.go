package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sethvargo/go-retry"
)

// ErrNotReady is wrapped by the error returned when the startup timeout elapses.
var ErrNotReady = errors.New("container did not become ready")

var errPending = errors.New("readiness condition not met")

// State is the position of a Poller in its lifecycle.
type State string

const (
	StatePolling   State = "polling"
	StateReady     State = "ready"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s != StatePolling
}

// Poller repeatedly evaluates a Strategy against a Target.
// A Poller is single-use.
type Poller struct {
	strategy Strategy
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
}

// NewPoller creates a poller for s. A nil logger uses slog.Default().
func NewPoller(s Strategy, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if s.StartupTimeout <= 0 {
		s.StartupTimeout = defaultStartupTimeout
	}
	if s.PollInterval <= 0 {
		s.PollInterval = defaultPollInterval
	}
	return &Poller{
		strategy: s.Clone(),
		logger:   logger,
		state:    StatePolling,
	}
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns how many checks have run.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Run polls until t is ready, the startup timeout elapses or ctx is done.
// It returns nil only in StateReady.
func (p *Poller) Run(ctx context.Context, t Target) error {
	if st := p.State(); st != StatePolling {
		return fmt.Errorf("poller already finished in state %s", st)
	}
	if err := p.strategy.Validate(); err != nil {
		p.transition(StateFailed)
		return fmt.Errorf("invalid wait strategy: %w", err)
	}

	timeout := p.strategy.StartupTimeout
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(p.strategy.PollInterval))
	err := retry.Do(pollCtx, backoff, func(ctx context.Context) error {
		attempt := p.nextAttempt()
		ready, err := Check(ctx, p.strategy, t)
		if err != nil {
			return err
		}
		if !ready {
			p.logger.Debug("container not ready yet", "attempt", attempt, "strategy", p.strategy.Kind.String())
			return retry.RetryableError(errPending)
		}
		return nil
	})

	switch {
	case err == nil:
		p.transition(StateReady)
		p.logger.Info("container is ready", "attempts", p.Attempts())
		return nil
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		p.transition(StateCancelled)
		return ctx.Err()
	case errors.Is(err, errPending), errors.Is(err, context.DeadlineExceeded):
		p.transition(StateTimedOut)
		return fmt.Errorf("%w within %s after %d attempts", ErrNotReady, timeout, p.Attempts())
	default:
		p.transition(StateFailed)
		return err
	}
}

func (p *Poller) nextAttempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return p.attempts
}

func (p *Poller) transition(to State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = to
}

// Until is a convenience wrapper running a fresh Poller for s against t.
func Until(ctx context.Context, s Strategy, t Target, logger *slog.Logger) error {
	return NewPoller(s, logger).Run(ctx, t)
}
