package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultJanitorInterval = time.Minute

var (
	// ErrEmptyIdentifier is returned when Check is called without a key.
	ErrEmptyIdentifier = errors.New("ratelimit: empty identifier")
	// ErrUnknownCategory is returned when no policy is configured for the
	// requested category. Selecting the wrong category is a caller bug.
	ErrUnknownCategory = errors.New("ratelimit: unknown category")
)

// Result describes the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type record struct {
	timestamps  []time.Time
	lastCleanup time.Time
}

// Limiter admits or denies requests per identifier under a sliding time
// window. It owns all per-identifier state and a background janitor that
// evicts idle identifiers; callers construct one per process and Stop it on
// shutdown.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*record
	policies Policies
	horizon  time.Duration
	logger   zerolog.Logger

	now      func() time.Time
	stopOnce sync.Once
	done     chan struct{}
}

// New builds a Limiter over the given policy table and starts its janitor.
// A zero interval selects the default sweep cadence.
func New(policies Policies, interval time.Duration, logger zerolog.Logger) *Limiter {
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	l := &Limiter{
		entries:  make(map[string]*record),
		policies: policies,
		horizon:  policies.maxWindow(),
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go l.janitor(interval)
	return l
}

// Stop halts the janitor. Safe to call more than once; used for test
// isolation and orderly shutdown.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Check decides whether one request for identifier is admitted under the
// category's policy. Allowed requests are recorded; denied requests consume
// no quota. The first request for a fresh identifier is always admitted.
func (l *Limiter) Check(identifier string, category Category) (Result, error) {
	pol, ok := l.policies[category]
	if !ok {
		return Result{}, ErrUnknownCategory
	}
	return l.CheckPolicy(identifier, pol)
}

// CheckPolicy is Check against an explicit policy rather than the table.
func (l *Limiter) CheckPolicy(identifier string, pol Policy) (Result, error) {
	if identifier == "" {
		return Result{}, ErrEmptyIdentifier
	}
	if pol.Window <= 0 || pol.MaxRequests < 1 {
		return Result{}, errors.New("ratelimit: invalid policy")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.entries[identifier]
	if !ok {
		rec = &record{}
		l.entries[identifier] = rec
	}

	// Trim against this policy's window only. Entries older than other
	// policies' windows stay until the janitor sweeps them.
	cutoff := now.Add(-pol.Window)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept
	rec.lastCleanup = now

	count := len(rec.timestamps)
	resetAt := now.Add(pol.Window)
	if count > 0 {
		resetAt = rec.timestamps[0].Add(pol.Window)
	}

	if count >= pol.MaxRequests {
		return Result{
			Allowed:   false,
			Limit:     pol.MaxRequests,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	rec.timestamps = append(rec.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     pol.MaxRequests,
		Remaining: pol.MaxRequests - count - 1,
		ResetAt:   resetAt,
	}, nil
}

// Lookup returns the configured policy for a category.
func (l *Limiter) Lookup(category Category) (Policy, bool) {
	pol, ok := l.policies[category]
	return pol, ok
}

// Size reports the number of tracked identifiers.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweepSafe()
		}
	}
}

// sweepSafe never lets a sweep fault reach request handling.
func (l *Limiter) sweepSafe() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn().Interface("panic", r).Msg("rate limit sweep recovered")
		}
	}()
	removed := l.sweep()
	if removed > 0 {
		l.logger.Debug().Int("evicted", removed).Msg("rate limit sweep")
	}
}

// sweep drops timestamps older than the global horizon and deletes
// identifiers whose record has emptied. This is the only place identifiers
// are removed from the map.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.horizon)
	removed := 0
	for id, rec := range l.entries {
		kept := rec.timestamps[:0]
		for _, ts := range rec.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		rec.timestamps = kept
		rec.lastCleanup = now
		if len(rec.timestamps) == 0 {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
