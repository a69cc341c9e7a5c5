// Package resilience guards calls to the inference backends and the ticket
// broker: bounded retries with jittered backoff, a circuit breaker per
// backend, and a bulkhead capping in-flight requests.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters. MaxRetries of 0 means a single attempt,
// which is what the decision components expect: they fall back to their
// rule engines instead of waiting on a struggling model.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// permanentError marks a failure that another attempt cannot fix, such as a
// rejected request or an unreadable model response.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff stops immediately and the breaker
// does not count it against the backend. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryWithBackoff runs fn up to MaxRetries+1 times, doubling the wait after
// each failure and adding up to 50% jitter. It stops early on context
// cancellation and on permanent errors, which are returned unwrapped.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var p *permanentError
		if errors.As(lastErr, &p) {
			return p.err
		}

		if attempt == cfg.MaxRetries {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
		if half := int64(wait / 2); half > 0 {
			wait += time.Duration(rand.Int63n(half))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// NewCircuitBreaker creates the breaker for one backend. It opens once at
// least five calls in a 30s window failed 60% of the time, and probes again
// after 10s. Caller cancellations and permanent errors are not backend
// failures and leave the counts alone.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				IsPermanent(err)
		},
	})
}

// Execute runs fn through cb. Every failure comes back as an
// ErrExternalService for service; an open breaker carries ErrCircuitOpen so
// the HTTP layer can answer 503.
func Execute(cb *gobreaker.CircuitBreaker, service string, fn func() (any, error)) (any, error) {
	result, err := cb.Execute(fn)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ErrExternalService{Service: service, Err: &domain.ErrCircuitOpen{Service: service}}
	}
	var p *permanentError
	if errors.As(err, &p) {
		err = p.err
	}
	return nil, &domain.ErrExternalService{Service: service, Err: err}
}

// Bulkhead caps concurrent calls to one backend.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead admitting maxConcurrency callers; values
// below one are raised to one.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, max(maxConcurrency, 1))}
}

// Acquire waits for a slot or for ctx to end.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	<-b.sem
}
