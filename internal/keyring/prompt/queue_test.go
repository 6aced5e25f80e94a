package prompt_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/hw-keyring/internal/keyring/prompt"
)

type span struct {
	id         int
	start, end mclock.AbsTime
}

type recorder struct {
	clock mclock.Clock
	mu    sync.Mutex
	spans []span
}

func (r *recorder) op(id int, gate <-chan struct{}) func(context.Context) error {
	return func(context.Context) error {
		start := r.clock.Now()
		if gate != nil {
			<-gate
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.spans = append(r.spans, span{id: id, start: start, end: r.clock.Now()})
		return nil
	}
}

func (r *recorder) recorded() []span {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]span, len(r.spans))
	copy(out, r.spans)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond)
}

func TestFirstPromptIsImmediate(t *testing.T) {
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	require.NoError(t, q.Admit(t.Context(), rec.op(1, nil)))

	spans := rec.recorded()
	require.Len(t, spans, 1)
	assert.Equal(t, mclock.AbsTime(0), spans[0].start)
	assert.Zero(t, clock.ActiveTimers())
}

func TestCooldownBetweenPrompts(t *testing.T) {
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	require.NoError(t, q.Admit(t.Context(), rec.op(1, nil)))

	done := make(chan error, 1)
	go func() { done <- q.Admit(t.Context(), rec.op(2, nil)) }()

	clock.WaitForTimers(1)
	clock.Run(prompt.DefaultCooldown - time.Millisecond)
	assert.Len(t, rec.recorded(), 1, "second prompt must wait for the cooldown")

	clock.Run(time.Millisecond)
	require.NoError(t, <-done)

	spans := rec.recorded()
	require.Len(t, spans, 2)
	assert.Equal(t, mclock.AbsTime(prompt.DefaultCooldown), spans[1].start-spans[0].end)
}

func TestNoCooldownAfterIdleGap(t *testing.T) {
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	require.NoError(t, q.Admit(t.Context(), rec.op(1, nil)))
	clock.Run(2 * prompt.DefaultCooldown)
	require.NoError(t, q.Admit(t.Context(), rec.op(2, nil)))

	assert.Len(t, rec.recorded(), 2)
}

func TestFIFOWithCooldown(t *testing.T) {
	const n = 5
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	gate := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, q.Admit(t.Context(), rec.op(1, gate)))
	}()
	waitFor(t, q.Busy)

	for id := 2; id <= n; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, q.Admit(t.Context(), rec.op(id, nil)))
		}(id)
		waitFor(t, func() bool { return q.Waiting() == id-1 })
	}

	close(gate)
	for i := 1; i < n; i++ {
		clock.WaitForTimers(1)
		clock.Run(prompt.DefaultCooldown)
	}
	wg.Wait()

	spans := rec.recorded()
	require.Len(t, spans, n)
	for i, s := range spans {
		assert.Equal(t, i+1, s.id, "operations must run in submission order")
		if i > 0 {
			assert.GreaterOrEqual(t, int64(s.start-spans[i-1].end), int64(prompt.DefaultCooldown))
		}
	}
}

func TestCancelQueued(t *testing.T) {
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	gate := make(chan struct{})
	first := make(chan error, 1)
	go func() { first <- q.Admit(t.Context(), rec.op(1, gate)) }()
	waitFor(t, q.Busy)

	ctx, cancel := context.WithCancel(t.Context())
	cancelled := make(chan error, 1)
	go func() { cancelled <- q.Admit(ctx, rec.op(2, nil)) }()
	waitFor(t, func() bool { return q.Waiting() == 1 })

	third := make(chan error, 1)
	go func() { third <- q.Admit(t.Context(), rec.op(3, nil)) }()
	waitFor(t, func() bool { return q.Waiting() == 2 })

	cancel()
	err := <-cancelled
	require.ErrorIs(t, err, prompt.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, q.Waiting())

	close(gate)
	require.NoError(t, <-first)
	clock.WaitForTimers(1)
	clock.Run(prompt.DefaultCooldown)
	require.NoError(t, <-third)

	spans := rec.recorded()
	require.Len(t, spans, 2)
	assert.Equal(t, 1, spans[0].id)
	assert.Equal(t, 3, spans[1].id)
}

func TestCancelWhileCooling(t *testing.T) {
	clock := &mclock.Simulated{}
	q := prompt.NewQueue(clock, prompt.DefaultCooldown, nil)
	rec := &recorder{clock: clock}

	require.NoError(t, q.Admit(t.Context(), rec.op(1, nil)))

	ctx, cancel := context.WithCancel(t.Context())
	cancelled := make(chan error, 1)
	go func() { cancelled <- q.Admit(ctx, rec.op(2, nil)) }()
	clock.WaitForTimers(1)

	cancel()
	require.ErrorIs(t, <-cancelled, prompt.ErrCancelled)
	assert.False(t, q.Busy())
	assert.Zero(t, clock.ActiveTimers())

	// the cooldown still counts from the end of the first prompt
	next := make(chan error, 1)
	go func() { next <- q.Admit(t.Context(), rec.op(3, nil)) }()
	clock.WaitForTimers(1)
	clock.Run(prompt.DefaultCooldown)
	require.NoError(t, <-next)
	assert.Len(t, rec.recorded(), 2)
}

func TestAlreadyCancelledContext(t *testing.T) {
	q := prompt.NewQueue(nil, prompt.DefaultCooldown, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	err := q.Admit(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, prompt.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCancelledMatchesDeadline(t *testing.T) {
	err := prompt.Cancelled(context.DeadlineExceeded)

	require.ErrorIs(t, err, prompt.ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Equal(t, "request cancelled: context deadline exceeded", err.Error())
}

func TestOperationErrorIsReturned(t *testing.T) {
	q := prompt.NewQueue(nil, 0, nil)
	boom := assert.AnError

	err := q.Admit(t.Context(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, q.Busy())
}
