package reliability

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/table-calib-go/config"
)

// ErrCircuitOpen is returned when an operation is attempted while the
// breaker is open and the recovery window has not elapsed. It is an expected
// control-flow signal, not a crash.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerState enumerates circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a circuit breaker shared between the tracker loop and on-demand
// calibration callers. All transitions happen under a mutex.
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	successes    int
	lastFailure  time.Time
	trialInUse   bool
	failLimit    int
	recovery     time.Duration
	successLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// NewBreaker returns a closed Breaker configured from cfg. If cfg is nil the
// default configuration is used.
func NewBreaker(cfg *config.Config, logger *slog.Logger) *Breaker {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Breaker{
		state:        StateClosed,
		failLimit:    cfg.FailureThreshold,
		recovery:     time.Duration(cfg.RecoveryTimeoutSeconds) * time.Second,
		successLimit: cfg.SuccessThreshold,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute runs op unless the circuit is open. While open, before the
// recovery window elapses, it returns ErrCircuitOpen without invoking op.
// After the window the breaker admits exactly one half-open trial call.
func (b *Breaker) Execute(op func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := op(); err != nil {
		b.markFailure()
		return err
	}
	b.markSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current failure and success counters.
func (b *Breaker) Counts() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.successes
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.recovery {
			b.setState(StateHalfOpen)
			b.successes = 0
			b.trialInUse = true
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.trialInUse {
			return ErrCircuitOpen
		}
		b.trialInUse = true
		return nil
	}
	return nil
}

func (b *Breaker) markSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialInUse = false
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successLimit {
			b.setState(StateClosed)
			b.successes = 0
		}
	}
}

func (b *Breaker) markFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.successes = 0
	b.trialInUse = false
	b.lastFailure = b.now()
	if b.failures >= b.failLimit && b.state != StateOpen {
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(next BreakerState) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	if b.logger != nil {
		b.logger.Info("breaker state transition", "from", prev.String(), "to", next.String(), "failures", b.failures)
	}
}
