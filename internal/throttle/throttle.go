package throttle

import (
	"context"
	"time"

	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// StateTTL is how long failure history is remembered after the last failure,
// or after the end of the lock it triggered.
const StateTTL = 24 * time.Hour

// maxShift caps the lock growth so the duration never overflows.
const maxShift = 16

// Throttle locks a key out after every maxFailures consecutive failures.
// Failures accumulate until a success resets them, and each new lock doubles:
// base for failures 5..9, 2×base for 10..14 and so on (with maxFailures=5).
type Throttle struct {
	store       Store
	maxFailures int
	baseLock    time.Duration
	now         func() time.Time
}

func New(store Store, maxFailures int, baseLock time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &Throttle{
		store:       store,
		maxFailures: maxFailures,
		baseLock:    baseLock,
		now:         now,
	}
}

// Check returns how long key is still locked, zero when attempts are allowed.
func (t *Throttle) Check(ctx context.Context, key string) (time.Duration, error) {
	state, err := t.store.Get(ctx, key)
	if err != nil || state == nil {
		return 0, err
	}
	return t.remaining(state), nil
}

// Fail records one failure and returns the lock it triggered, if any.
func (t *Throttle) Fail(ctx context.Context, key string) (time.Duration, error) {
	state, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if state == nil {
		state = &State{}
	}

	state.Failures++
	if state.Failures%t.maxFailures == 0 {
		lock := t.lockFor(state.Failures)
		state.LockedUntil = t.now().Add(lock)
		logger.Log.Warn("Login throttle engaged",
			zap.String("key", key),
			zap.Int("failures", state.Failures),
			zap.Duration("lock", lock),
		)
	}

	// Keep the history for a day past the end of any lock it carries.
	left := t.remaining(state)
	if err := t.store.Put(ctx, key, state, left+StateTTL); err != nil {
		return 0, err
	}
	return left, nil
}

// Reset forgets key's history after a successful attempt.
func (t *Throttle) Reset(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}

func (t *Throttle) lockFor(failures int) time.Duration {
	shift := (failures - 1) / t.maxFailures
	if shift > maxShift {
		shift = maxShift
	}
	return t.baseLock << uint(shift)
}

func (t *Throttle) remaining(state *State) time.Duration {
	left := state.LockedUntil.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

// RetryAfterSeconds rounds a lock up to whole seconds for Retry-After.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
