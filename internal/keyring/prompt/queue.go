package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/metrics"
)

// DefaultCooldown is the minimum gap between two consecutive device prompts
const DefaultCooldown = 1000 * time.Millisecond

// ErrCancelled is returned to a caller that withdrew before its operation was admitted
var ErrCancelled = errors.New("request cancelled")

type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string {
	return ErrCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelledError) Is(target error) bool {
	return target == ErrCancelled //nolint:errorlint // sentinel identity
}

func (e *cancelledError) Unwrap() error {
	return e.cause
}

// Cancelled reports a withdrawn request. The result matches both ErrCancelled and cause
// (context.Canceled or context.DeadlineExceeded) with errors.Is.
func Cancelled(cause error) error {
	return &cancelledError{cause: cause}
}

// Serializer admits interactive device operations one at a time
type Serializer interface {
	Admit(ctx context.Context, op func(ctx context.Context) error) error
}

type ticketState int

const (
	stateQueued ticketState = iota
	stateCooling
	stateReady
	stateDone
)

type ticket struct {
	ready      chan struct{}
	state      ticketState
	timer      mclock.Timer
	enqueuedAt mclock.AbsTime
}

// Queue serializes interactive device operations in submission order and keeps a
// cooldown between the end of one prompt and the start of the next. The first prompt
// of a session is admitted without delay.
type Queue struct {
	clock    mclock.Clock
	cooldown time.Duration
	metrics  *metrics.Metrics

	mu       sync.Mutex
	waiting  []*ticket
	active   *ticket
	lastEnd  mclock.AbsTime
	prompted bool
}

var _ Serializer = (*Queue)(nil)

// NewQueue creates a queue. A zero cooldown disables the gap between prompts.
func NewQueue(clock mclock.Clock, cooldown time.Duration, m *metrics.Metrics) *Queue {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Queue{
		clock:    clock,
		cooldown: cooldown,
		metrics:  m,
	}
}

// Admit waits for the caller's turn and runs op. Cancelling ctx while still queued
// removes the caller from the queue and returns ErrCancelled. Once op has started it
// runs to completion; ctx is passed through to it.
func (q *Queue) Admit(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return Cancelled(err)
	}

	t := &ticket{
		ready:      make(chan struct{}),
		enqueuedAt: q.clock.Now(),
	}

	q.mu.Lock()
	q.waiting = append(q.waiting, t)
	q.dispatchLocked()
	q.mu.Unlock()

	select {
	case <-t.ready:
	case <-ctx.Done():
	}

	if err := ctx.Err(); err != nil {
		q.withdraw(t)
		return Cancelled(err)
	}

	q.metrics.PromptWaited(time.Duration(q.clock.Now() - t.enqueuedAt))
	defer q.finish(t)

	return op(ctx)
}

// Waiting returns the number of operations queued behind the active one
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.waiting)
}

// Busy reports whether an operation holds the device slot (cooling down or running)
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.active != nil
}

// dispatchLocked hands the slot to the head of the queue when it is free
func (q *Queue) dispatchLocked() {
	defer q.metrics.QueueDepth(len(q.waiting))

	if q.active != nil || len(q.waiting) == 0 {
		return
	}

	t := q.waiting[0]
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]
	q.active = t

	wait := q.remainingLocked()
	if wait <= 0 {
		t.state = stateReady
		close(t.ready)
		return
	}

	t.state = stateCooling
	t.timer = q.clock.AfterFunc(wait, func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		if q.active == t && t.state == stateCooling {
			t.state = stateReady
			close(t.ready)
		}
	})
}

func (q *Queue) remainingLocked() time.Duration {
	if !q.prompted {
		return 0
	}
	elapsed := time.Duration(q.clock.Now() - q.lastEnd)
	return q.cooldown - elapsed
}

// withdraw removes a ticket that never ran. The cooldown state is left untouched.
func (q *Queue) withdraw(t *ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch t.state {
	case stateQueued:
		for i, w := range q.waiting {
			if w == t {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				break
			}
		}
	case stateCooling, stateReady:
		if t.timer != nil {
			t.timer.Stop()
		}
		if q.active == t {
			q.active = nil
		}
	case stateDone:
	}
	t.state = stateDone
	q.dispatchLocked()
}

// finish releases the slot after op ran and starts the cooldown window
func (q *Queue) finish(t *ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active == t {
		q.active = nil
	}
	t.state = stateDone
	q.lastEnd = q.clock.Now()
	q.prompted = true
	q.dispatchLocked()
}
