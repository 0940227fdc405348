package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/logger"
)

// ErrNoAvailableStores is returned when no backend in the chain is usable.
var ErrNoAvailableStores = errors.New("no available stores")

// Selected is the record found by GetFirstAuth and the store holding it.
type Selected struct {
	Store  Store
	Record *auth.Record
}

// Failure is one backend's error collected while walking the chain.
type Failure struct {
	Store Store
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Store.Kind(), f.Err)
}

// SetResult describes a successful SetWithFallback.
type SetResult struct {
	Store Store
	// UsedFallback is true when Store is not the first available backend.
	UsedFallback bool
	// Failures lists the backends tried before Store.
	Failures []Failure
}

// SetError is returned when every available backend failed to store the
// record. Its message names the preferred backend.
type SetError struct {
	Preferred Store
	Failures  []Failure
}

func (e *SetError) Error() string {
	return "failed to store auth using " + e.Preferred.Label()
}

// Detail lists every collected failure.
func (e *SetError) Detail() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

// ClearResult partitions the available backends by Clear outcome.
type ClearResult struct {
	Cleared []Store
	Failed  []Failure
}

// GetFirstAuth returns the record from the first available store that has
// one. Stores after the hit are not touched. It returns nil, nil when no
// store has a record; a store that fails to read stops the walk.
func GetFirstAuth(ctx context.Context, stores []Store) (*Selected, error) {
	log := logger.FromContext(ctx)
	for _, s := range stores {
		if !s.IsAvailable(ctx) {
			log.Debug(ctx, "skipping unavailable store", "store", s.Kind())
			continue
		}
		rec, err := s.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read auth from %s: %w", s.Label(), err)
		}
		if rec != nil {
			log.Debug(ctx, "using stored auth", "store", s.Kind())
			return &Selected{Store: s, Record: rec}, nil
		}
		log.Debug(ctx, "store has no auth", "store", s.Kind())
	}
	return nil, nil
}

// SetWithFallback stores rec in the first available store, moving down the
// chain when a store fails.
func SetWithFallback(ctx context.Context, stores []Store, rec *auth.Record) (*SetResult, error) {
	log := logger.FromContext(ctx)

	available := AvailableStores(ctx, stores)
	if len(available) == 0 {
		return nil, ErrNoAvailableStores
	}

	var failures []Failure
	for i, s := range available {
		if err := s.Set(ctx, rec.Clone()); err != nil {
			log.Warn(ctx, "store failed, trying next", "store", s.Kind(), "error", err)
			failures = append(failures, Failure{Store: s, Err: err})
			continue
		}
		return &SetResult{Store: s, UsedFallback: i != 0, Failures: failures}, nil
	}

	return nil, &SetError{Preferred: available[0], Failures: failures}
}

// ClearAllAvailable clears every available store, continuing past failures.
// Unavailable stores appear in neither list.
func ClearAllAvailable(ctx context.Context, stores []Store) ClearResult {
	log := logger.FromContext(ctx)

	var res ClearResult
	for _, s := range stores {
		if !s.IsAvailable(ctx) {
			log.Debug(ctx, "skipping unavailable store", "store", s.Kind())
			continue
		}
		if err := s.Clear(ctx); err != nil {
			log.Warn(ctx, "failed to clear store", "store", s.Kind(), "error", err)
			res.Failed = append(res.Failed, Failure{Store: s, Err: err})
			continue
		}
		res.Cleared = append(res.Cleared, s)
	}
	return res
}

// AvailableStores filters stores down to those currently usable, keeping order.
func AvailableStores(ctx context.Context, stores []Store) []Store {
	var out []Store
	for _, s := range stores {
		if s.IsAvailable(ctx) {
			out = append(out, s)
		} else {
			logger.FromContext(ctx).Debug(ctx, "skipping unavailable store", "store", s.Kind())
		}
	}
	return out
}
