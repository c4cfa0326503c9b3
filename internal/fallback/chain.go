// Package fallback runs an ordered list of providers until one succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrExhausted is matched by the error Run returns when no provider succeeded.
var ErrExhausted = errors.New("all providers failed")

// ErrRejected is recorded for a provider whose result was refused by Accept.
var ErrRejected = errors.New("result rejected")

// Provider is one source tried by a Chain.
type Provider[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (T, error)
}

// Attempt records the outcome of one provider call.
type Attempt struct {
	Name string
	Err  error
}

// Chain tries its providers strictly in order and stops at the first accepted result.
type Chain[T any] struct {
	Providers []Provider[T]
	// Accept decides whether a successful result is usable.
	// Nil accepts every result returned without error.
	Accept func(T) bool
	Logger *slog.Logger
}

// Result is the outcome of a successful Run.
type Result[T any] struct {
	Value    T
	Provider string
	Attempts []Attempt
}

// ExhaustedError is returned when every provider failed or was rejected.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Name, a.Err)
	}
	return fmt.Sprintf("%s (%s)", ErrExhausted, strings.Join(parts, "; "))
}

// Unwrap exposes ErrExhausted and each provider failure to errors.Is.
func (e *ExhaustedError) Unwrap() []error {
	errs := []error{ErrExhausted}
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Run calls each provider in turn. A provider error or rejected result is
// logged and the next provider is tried. Run stops early when ctx is done.
func (c Chain[T]) Run(ctx context.Context) (Result[T], error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var attempts []Attempt
	for _, p := range c.Providers {
		if err := ctx.Err(); err != nil {
			return Result[T]{Attempts: attempts}, err
		}

		value, err := p.Fetch(ctx)
		if err == nil && c.Accept != nil && !c.Accept(value) {
			err = ErrRejected
		}
		if err != nil {
			attempts = append(attempts, Attempt{Name: p.Name, Err: err})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result[T]{Attempts: attempts}, ctxErr
			}
			logger.Warn("provider failed, trying next", "provider", p.Name, "error", err)
			continue
		}

		attempts = append(attempts, Attempt{Name: p.Name})
		return Result[T]{Value: value, Provider: p.Name, Attempts: attempts}, nil
	}

	return Result[T]{Attempts: attempts}, &ExhaustedError{Attempts: attempts}
}
