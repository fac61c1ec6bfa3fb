package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time { return f.current }

func (f *fakeClock) advance(d time.Duration) { f.current = f.current.Add(d) }

func newTestLimiter(t *testing.T, policies Policies) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	l := New(policies, time.Hour, zerolog.Nop())
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestCheckAllowsUpToLimitThenDenies(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: 10 * time.Second, MaxRequests: 10}}
	l, clock := newTestLimiter(t, pols)

	for i := 0; i < 10; i++ {
		res, err := l.Check("user:abc", CategoryCreation)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		require.Equal(t, 10, res.Limit)
		require.Equal(t, 9-i, res.Remaining)
		clock.advance(500 * time.Millisecond)
	}

	res, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Zero(t, res.Remaining)
}

func TestWindowSlidesFully(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: 10 * time.Second, MaxRequests: 1}}
	l, clock := newTestLimiter(t, pols)

	res, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	clock.advance(10*time.Second + time.Millisecond)
	res, err = l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestDeniedRequestsConsumeNoQuota(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: time.Minute, MaxRequests: 5}}
	l, _ := newTestLimiter(t, pols)

	for i := 0; i < 10; i++ {
		_, err := l.Check("user:abc", CategoryCreation)
		require.NoError(t, err)
	}

	l.mu.Lock()
	rec := l.entries["user:abc"]
	require.NotNil(t, rec)
	require.Len(t, rec.timestamps, 5)
	l.mu.Unlock()
}

func TestDeniedResetAtIsOldestPlusWindow(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: 10 * time.Second, MaxRequests: 2}}
	l, clock := newTestLimiter(t, pols)

	first := clock.current
	_, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	clock.advance(time.Second)
	_, err = l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)

	clock.advance(time.Second)
	res, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, first.Add(10*time.Second), res.ResetAt)
	require.True(t, res.ResetAt.After(clock.current))
}

func TestFreshIdentifierResetAt(t *testing.T) {
	pols := Policies{CategoryRead: {Window: time.Minute, MaxRequests: 100}}
	l, clock := newTestLimiter(t, pols)

	res, err := l.Check("ip:203.0.113.9", CategoryRead)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, clock.current.Add(time.Minute), res.ResetAt)
}

func TestCheckRejectsBadInput(t *testing.T) {
	l, _ := newTestLimiter(t, DefaultPolicies())

	_, err := l.Check("", CategoryCreation)
	require.ErrorIs(t, err, ErrEmptyIdentifier)

	_, err = l.Check("user:abc", Category("nonexistent"))
	require.ErrorIs(t, err, ErrUnknownCategory)

	_, err = l.CheckPolicy("user:abc", Policy{Window: -time.Second, MaxRequests: 1})
	require.Error(t, err)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: time.Minute, MaxRequests: 1}}
	l, _ := newTestLimiter(t, pols)

	res, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Check("user:def", CategoryCreation)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestSweepEvictsIdleIdentifiers(t *testing.T) {
	pols := Policies{
		CategoryCreation: {Window: 10 * time.Second, MaxRequests: 5},
		CategoryUpload:   {Window: time.Minute, MaxRequests: 5},
	}
	l, clock := newTestLimiter(t, pols)

	_, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.Equal(t, 1, l.Size())

	// Past the creation window but inside the upload horizon: record stays.
	clock.advance(30 * time.Second)
	l.sweep()
	require.Equal(t, 1, l.Size())

	clock.advance(time.Minute)
	l.sweep()
	require.Zero(t, l.Size())
}

func TestJanitorEvictsOnItsOwn(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: 50 * time.Millisecond, MaxRequests: 5}}
	l := New(pols, 20*time.Millisecond, zerolog.Nop())
	t.Cleanup(l.Stop)

	_, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.Equal(t, 1, l.Size())

	require.Eventually(t, func() bool { return l.Size() == 0 },
		time.Second, 10*time.Millisecond)
}

// Mirrors the canonical scenario: ten submissions inside a 10s window, the
// eleventh denied with the reset anchored on the first, admission again once
// the window has slid past the last recorded timestamp.
func TestCreationScenario(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: 10 * time.Second, MaxRequests: 10}}
	l, clock := newTestLimiter(t, pols)
	start := clock.current

	for i := 0; i < 10; i++ {
		res, err := l.Check("user:abc", CategoryCreation)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 9-i, res.Remaining)
		clock.advance(500 * time.Millisecond)
	}

	clock.current = start.Add(6 * time.Second)
	res, err := l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, start.Add(10*time.Second), res.ResetAt)

	clock.current = start.Add(10*time.Second + 4500*time.Millisecond + time.Millisecond)
	res, err = l.Check("user:abc", CategoryCreation)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
