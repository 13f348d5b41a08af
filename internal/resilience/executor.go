// Package resilience wraps outbound calls (cloud OCR, AI providers) with
// bounded retries and a per-operation circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/joseph-ayodele/artists-registry/internal/common"
)

// Verdict is what a failed attempt means for retrying and for the breaker.
type Verdict int

const (
	// Transient failures are retried and count against the breaker.
	Transient Verdict = iota
	// Permanent failures stop retrying but still count against the breaker.
	Permanent
	// CallerFault stops retrying and is invisible to the breaker: the remote
	// side answered, the request itself was wrong.
	CallerFault
)

type Classifier func(err error) Verdict

// Executor runs each attempt through a two-step breaker, so every attempt,
// retries included, is admitted and recorded on its own.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	guards map[string]*gobreaker.TwoStepCircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:    cfg.normalize(),
		logger: logger,
		guards: make(map[string]*gobreaker.TwoStepCircuitBreaker[struct{}]),
	}
}

// Execute calls fn until it succeeds, classify says to stop, attempts run
// out or ctx ends. A nil classify means HTTPClassifier.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return errors.New("resilience: nil operation")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = HTTPClassifier
	}

	var last error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = e.attempt(ctx, op, fn, classify)
		if last == nil {
			return nil
		}
		if IsCircuitOpen(last) || classify(last) != Transient || attempt == e.cfg.RetryMaxAttempts {
			return last
		}

		wait := e.backoff(attempt)
		e.logger.Warn("resilience.retry", "operation", op, "attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts, "backoff_ms", wait.Milliseconds(), "error", last)
		if !sleep(ctx, wait) {
			return last
		}
	}
	return last
}

func (e *Executor) attempt(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	if !e.cfg.BreakerEnabled {
		return fn(ctx)
	}
	done, err := e.guard(op, classify).Allow()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = fn(ctx)
	done(err)
	return err
}

// backoff is the wait after the given failed attempt: initial * multiplier^(n-1), capped.
func (e *Executor) backoff(attempt int) time.Duration {
	d := float64(e.cfg.RetryInitialBackoff) * math.Pow(e.cfg.RetryMultiplier, float64(attempt-1))
	if d > float64(e.cfg.RetryMaxBackoff) {
		return e.cfg.RetryMaxBackoff
	}
	return time.Duration(d)
}

func (e *Executor) guard(op string, classify Classifier) *gobreaker.TwoStepCircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.guards[op]; ok {
		return g
	}
	minRequests, ratio := e.cfg.BreakerMinRequests, e.cfg.BreakerFailureRatio
	g := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= minRequests && float64(c.TotalFailures) >= ratio*float64(c.Requests)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || classify(err) == CallerFault
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("resilience.breaker.state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.guards[op] = g
	return g
}

// State reports the breaker state for an operation. Operations that never
// ran, or run with the breaker disabled, read as closed.
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	g, ok := e.guards[strings.TrimSpace(operation)]
	e.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return g.State().String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// HTTPClassifier retries throttling, 5xx replies and transport errors.
// Other 4xx replies are the caller's fault.
func HTTPClassifier(err error) Verdict {
	if errors.Is(err, context.Canceled) {
		return CallerFault
	}
	var se *common.StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusTooManyRequests || se.Status >= 500 {
			return Transient
		}
		return CallerFault
	}
	return Transient
}
