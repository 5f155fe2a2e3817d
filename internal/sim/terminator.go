package sim

import (
	"context"
	"sync"
	"time"

	"github.com/containerd/log"
)

// Terminator records the application-termination sequence instead of
// exiting the process. It owns the grace period between the background
// transition and termination, as the real collaborator does.
type Terminator struct {
	grace time.Duration

	mu           sync.Mutex
	backgrounded bool
	terminated   bool

	// Done is closed once Terminate has run.
	done chan struct{}
}

// NewTerminator creates a terminator with the given grace period.
func NewTerminator(grace time.Duration) *Terminator {
	return &Terminator{grace: grace, done: make(chan struct{})}
}

// BeginBackgroundTransition marks the start of the termination sequence.
func (t *Terminator) BeginBackgroundTransition(ctx context.Context) {
	log.G(ctx).Debug("sim: background transition")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backgrounded = true
}

// Terminate waits out the grace period and marks the process terminated.
func (t *Terminator) Terminate(ctx context.Context) {
	if t.grace > 0 {
		select {
		case <-time.After(t.grace):
		case <-ctx.Done():
		}
	}
	log.G(ctx).Debug("sim: terminate")

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminated {
		return
	}
	t.terminated = true
	close(t.done)
}

// Backgrounded reports whether the background transition was signaled.
func (t *Terminator) Backgrounded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.backgrounded
}

// Terminated reports whether Terminate has run.
func (t *Terminator) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// Done returns a channel closed once Terminate has run.
func (t *Terminator) Done() <-chan struct{} {
	return t.done
}
