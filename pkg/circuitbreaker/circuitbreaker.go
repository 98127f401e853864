// Package circuitbreaker stops reminder runs from hammering a messaging
// provider that is down or throttling the studio's number.
//
// The breaker judges the provider by the outcome of each delivery rather than
// by error values: a message the provider refused for a bad recipient proves
// the provider is up, while a timeout or 5xx counts against it, and a
// throttling answer opens the circuit for as long as the provider asked.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while sends are short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

// Outcome is what happened to one delivery attempt.
type Outcome int

const (
	// Delivered: the provider accepted the message.
	Delivered Outcome = iota
	// Rejected: the provider answered but refused this message (unknown
	// recipient, bad payload). The provider is healthy.
	Rejected
	// Failed: the provider errored or could not be reached.
	Failed
	// Throttled: the provider asked the studio to slow down.
	Throttled
	// Abandoned: the caller gave up (context canceled); says nothing about
	// the provider.
	Abandoned
)

// Config configures a Breaker.
type Config struct {
	Name string

	// FailureThreshold is the number of consecutive Failed outcomes that
	// opens the circuit. Default 5.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a trial send.
	// Default 30s.
	Cooldown time.Duration

	// TrialSuccesses is the number of healthy trial sends needed to close again.
	// Default 1.
	TrialSuccesses int

	OnStateChange func(name string, from, to State)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats counts outcomes since the breaker was created.
type Stats struct {
	Delivered      int
	Rejected       int
	Failed         int
	Throttled      int
	ShortCircuited int
}

// Breaker is safe for concurrent use. Callers ask Allow before a send and
// Report its outcome afterwards; every successful Allow must be followed by
// exactly one Report.
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	trialing  bool
	trialsOK  int
	openUntil time.Time
	stats     Stats
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.TrialSuccesses <= 0 {
		cfg.TrialSuccesses = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// WhatsApp returns the breaker for the WhatsApp Cloud API.
func WhatsApp(onStateChange func(name string, from, to State)) *Breaker {
	return New(Config{
		Name:             "whatsapp-cloud-api",
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		TrialSuccesses:   1,
		OnStateChange:    onStateChange,
	})
}

// Allow reports whether a send may go out. After the cooldown a single trial
// send is let through; concurrent sends keep failing fast until it reports.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.cfg.Now().Before(b.openUntil) {
			b.stats.ShortCircuited++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.trialing = true
		return nil
	default:
		if b.trialing {
			b.stats.ShortCircuited++
			return ErrOpen
		}
		b.trialing = true
		return nil
	}
}

// Report records the outcome of an allowed send. retryAfter is the delay the
// provider asked for on Throttled, zero otherwise.
func (b *Breaker) Report(o Outcome, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trial := b.state == StateHalfOpen
	if trial {
		b.trialing = false
	}

	switch o {
	case Delivered, Rejected:
		if o == Delivered {
			b.stats.Delivered++
		} else {
			b.stats.Rejected++
		}
		b.failures = 0
		if trial {
			b.trialsOK++
			if b.trialsOK >= b.cfg.TrialSuccesses {
				b.setState(StateClosed)
			}
		}

	case Failed:
		b.stats.Failed++
		b.failures++
		if trial || b.failures >= b.cfg.FailureThreshold {
			b.open(b.cfg.Cooldown)
		}

	case Throttled:
		b.stats.Throttled++
		wait := b.cfg.Cooldown
		if retryAfter > wait {
			wait = retryAfter
		}
		b.open(wait)
	}
}

func (b *Breaker) open(wait time.Duration) {
	b.openUntil = b.cfg.Now().Add(wait)
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.trialsOK = 0
	b.trialing = false

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has passed
// still reports StateOpen until the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a copy of the outcome counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }
