// Package retry runs operations against the studio's backing services again
// when they fail for a reason that may go away: Postgres and Redis while they
// boot, the WhatsApp Cloud API when it throttles or has a bad minute, and
// event handlers.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type markedError struct {
	err   error
	retry bool
}

func (e *markedError) Error() string { return e.err.Error() }
func (e *markedError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt, whatever the policy's
// classifier says.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, retry: true}
}

// Permanent marks err as final. Do returns the unwrapped error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, retry: false}
}

func marked(err error) (*markedError, bool) {
	var m *markedError
	ok := errors.As(err, &m)
	return m, ok
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	m, ok := marked(err)
	return ok && m.retry
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	m, ok := marked(err)
	return ok && !m.retry
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// StatusCoder is implemented by API errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryAfterHint is implemented by API errors that carry a Retry-After delay.
type RetryAfterHint interface {
	RetryAfter() time.Duration
}

// RetryableStatus reports whether a response status is transient: request
// timeout, throttling, and server errors other than "not implemented".
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code == http.StatusNotImplemented, code == http.StatusHTTPVersionNotSupported:
		return false
	default:
		return code >= 500
	}
}

// HTTPRetryIf classifies errors of HTTP API clients. Client errors (4xx) are
// final, throttling and 5xx are retried, and so are timeouts and network
// failures that never produced a response.
func HTTPRetryIf(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if m, ok := marked(err); ok {
		return m.retry
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return RetryableStatus(sc.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy says how many times and how patiently an operation is attempted.
// The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by up to ±Jitter of its value.
	Jitter float64

	// RetryIf decides whether an unmarked error is retried. Nil retries only
	// errors marked with Retryable.
	RetryIf func(error) bool

	// OnRetry runs before sleeping between attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do runs op until it succeeds, the policy gives up, or ctx is done. The
// returned error is the last one op produced, without retry markers.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = unmark(err)

		if attempt == attempts || !p.shouldRetry(err) {
			return lastErr
		}

		delay := p.Delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (p Policy) shouldRetry(err error) bool {
	if m, ok := marked(err); ok {
		return m.retry
	}
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	return false
}

// Delay returns the pause after the given failed attempt (1-based). A
// Retry-After hint on err raises the pause, still capped by MaxDelay.
func (p Policy) Delay(attempt int, err error) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}

	var hint RetryAfterHint
	if errors.As(err, &hint) && float64(hint.RetryAfter()) > d {
		d = float64(hint.RetryAfter())
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unmark(err error) error {
	if m, ok := err.(*markedError); ok {
		return m.err
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// WhatsApp is the policy for Cloud API sends. The API throttles per business
// phone number, so the backoff is generous and Retry-After is honored.
func WhatsApp() Policy {
	return Policy{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
		RetryIf:      HTTPRetryIf,
	}
}

// Startup is the policy for the first ping of a backing service that may
// still be booting (docker compose, rolling deploys). Every unmarked error
// is retried; mark configuration errors with Permanent.
func Startup(service string) Policy {
	return Policy{
		MaxAttempts:  8,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
		RetryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			slog.Warn("waiting for backing service",
				"service", service,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		},
	}
}

// EventHandlers is the default policy of the event dispatcher.
func EventHandlers() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}
