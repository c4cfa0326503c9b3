package apiclient

import (
	"sync"
	"time"
)

// BreakerConfig configures circuit breaking for one card API.
type BreakerConfig struct {
	Failures   int           // consecutive failures that open the circuit
	Recoveries int           // successes in half-open state that close it again
	Cooldown   time.Duration // how long an open circuit rejects calls
}

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half-open"
)

// breaker is a consecutive-failure circuit breaker. A nil *breaker allows everything.
type breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
}

func newBreaker(cfg *BreakerConfig) *breaker {
	if cfg == nil {
		return nil
	}
	return &breaker{cfg: *cfg, state: stateClosed}
}

// allow reports whether a call may go out. After the cooldown an open
// circuit lets probes through in half-open state.
func (b *breaker) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen {
		if time.Since(b.openedAt) <= b.cfg.Cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.successes = 0
	}
	return true
}

func (b *breaker) success() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == stateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.Recoveries {
			b.state = stateClosed
		}
	}
}

func (b *breaker) failure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.cfg.Failures {
		b.state = stateOpen
		b.openedAt = time.Now()
		b.successes = 0
	}
}

func (b *breaker) current() breakerState {
	if b == nil {
		return stateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
