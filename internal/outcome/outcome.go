// Package outcome decides how an interview ended. Submit, cancel, the
// deadline and caller cancellation all race through Resolve; only the first
// one counts.
package outcome

import (
	"context"
	"sync"
	"time"
)

// Status is the terminal state of a session.
type Status string

const (
	StatusPending   Status = ""
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
	StatusAborted   Status = "aborted"
)

func (s Status) String() string {
	if s == StatusPending {
		return "pending"
	}
	return string(s)
}

// Resolver holds the one-shot outcome of a session. The status is claimed
// and read under mu, so Pending and Status never disagree.
type Resolver struct {
	done chan struct{}

	mu       sync.Mutex
	status   Status
	hooks    []func(Status)
	timer    *time.Timer
	deadline time.Time
}

func NewResolver() *Resolver {
	return &Resolver{done: make(chan struct{})}
}

// OnResolve registers fn to run once with the winning status. Hooks run in
// registration order on the goroutine that won the race, before Done is
// closed, so a hook must not wait on the resolver. A hook registered after
// resolution is not called.
func (r *Resolver) OnResolve(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return
	}
	r.hooks = append(r.hooks, fn)
}

// Resolve records status if nothing has been recorded yet and reports whether
// this call won. Losing calls have no effect.
func (r *Resolver) Resolve(status Status) bool {
	return r.ResolveWith(status, nil)
}

// ResolveWith is Resolve with a commit step: when this call wins, commit runs
// before the hooks and before Done is closed, so whoever waits on Done sees
// its effects. A losing call never runs commit.
func (r *Resolver) ResolveWith(status Status, commit func()) bool {
	if status == StatusPending {
		return false
	}
	r.mu.Lock()
	if r.status != StatusPending {
		r.mu.Unlock()
		return false
	}
	r.status = status
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	if commit != nil {
		commit()
	}
	for _, fn := range hooks {
		fn(status)
	}
	close(r.done)
	return true
}

// Done is closed once the outcome is known and every hook has returned.
func (r *Resolver) Done() <-chan struct{} {
	return r.done
}

// Status returns the recorded status, or StatusPending.
func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Resolver) Pending() bool {
	return r.Status() == StatusPending
}

// ArmTimeout resolves the session as timed out after d. A non-positive d
// disarms the deadline.
func (r *Resolver) ArmTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if d <= 0 {
		r.deadline = time.Time{}
		return
	}
	r.deadline = time.Now().Add(d)
	r.timer = time.AfterFunc(d, func() { r.Resolve(StatusTimeout) })
}

// Extend pushes the deadline to now+d while the session is pending and a
// deadline is armed. It reports whether the deadline moved.
func (r *Resolver) Extend(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending || r.timer == nil || d <= 0 {
		return false
	}
	if !r.timer.Stop() {
		// Already fired; the timeout owns the outcome.
		return false
	}
	r.deadline = time.Now().Add(d)
	r.timer.Reset(d)
	return true
}

// Deadline returns when the session times out. The zero time means no
// deadline is armed.
func (r *Resolver) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

// Remaining is the time left before the deadline, floored at zero. It is
// zero when no deadline is armed.
func (r *Resolver) Remaining() time.Duration {
	deadline := r.Deadline()
	if deadline.IsZero() {
		return 0
	}
	if left := time.Until(deadline); left > 0 {
		return left
	}
	return 0
}

// Watch resolves the session as aborted when ctx is cancelled first.
func (r *Resolver) Watch(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			r.Resolve(StatusAborted)
		case <-r.done:
		}
	}()
}
