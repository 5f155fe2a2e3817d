// Package session implements the single-writer state coordinator for one VM
// session. Lifecycle, I/O-resource, and removable-device notifications
// arrive from arbitrary goroutines and are funneled onto one confinement
// goroutine that owns all session state. After every mutation the new
// immutable Snapshot is published before the next mutation is consumed, so
// subscribers never observe partial state.
//
// A Session is bound 1:1 to a VM controller and lives exactly as long as
// that binding; a new VM session requires a new Session.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/config"
	"github.com/spin-stack/vmsession/internal/vmm"
)

// mutation is a state-change request submitted to the confinement loop.
// Mutations are applied in the order they are submitted, not the order the
// asynchronous work that produced them was initiated.
type mutation struct {
	op    string
	apply func(*state)
}

// Session coordinates the published state of one VM session.
type Session struct {
	vm         vmm.Controller
	terminator vmm.Terminator

	// ctx is the session-lifetime context, used for logging and for
	// submissions made from notification callbacks that carry no context of
	// their own.
	ctx context.Context

	mailbox   chan mutation
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once

	// closeMu orders mailbox acceptance against Close: a mutation accepted
	// under the read lock is in the mailbox before the closed flag flips, so
	// the shutdown drain always applies it.
	closeMu sync.RWMutex
	closed  bool

	current atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan *Snapshot
	nextSub int
	subBuf  int
}

// New creates a session bound to the given VM controller and terminator and
// starts its confinement loop. The initial snapshot reflects the
// controller's current lifecycle state. Callers must Close() the session
// when the VM binding ends.
func New(ctx context.Context, vm vmm.Controller, terminator vmm.Terminator, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Session{
		vm:         vm,
		terminator: terminator,
		ctx:        ctx,
		mailbox:    make(chan mutation, cfg.Session.MailboxBuffer),
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
		subs:       make(map[int]chan *Snapshot),
		subBuf:     cfg.Session.SubscriberBuffer,
	}

	st := state{vmStatus: vm.State()}
	s.current.Store(st.snapshot())

	log.G(ctx).WithFields(log.Fields{
		"status":  st.vmStatus.String(),
		"mailbox": cfg.Session.MailboxBuffer,
	}).Debug("session: coordinator started")

	go s.run(st)
	return s
}

// run is the confinement loop. It is the only goroutine that touches st.
func (s *Session) run(st state) {
	defer close(s.stoppedCh)

	for {
		select {
		case m := <-s.mailbox:
			s.applyMutation(&st, m)
		case <-s.stopCh:
			// Drain: mutations already accepted into the mailbox are still
			// applied so that waiters observe completion.
			for {
				select {
				case m := <-s.mailbox:
					s.applyMutation(&st, m)
				default:
					s.closeSubscribers()
					log.G(s.ctx).Debug("session: coordinator stopped")
					return
				}
			}
		}
	}
}

// applyMutation runs the mutation and publishes the resulting snapshot
// before the next mutation is consumed.
func (s *Session) applyMutation(st *state, m mutation) {
	m.apply(st)
	snap := st.snapshot()
	s.current.Store(snap)
	s.broadcast(snap)
	log.G(s.ctx).WithField("op", m.op).Trace("session: mutation applied")
}

// dispatch submits a mutation to the confinement loop. It returns once the
// mutation has been accepted; application happens asynchronously, in
// submission order. Acceptance is exclusive with Close: a nil return means
// the mutation will be applied, and any dispatch after Close reports
// ErrSessionClosed.
func (s *Session) dispatch(ctx context.Context, op string, apply func(*state)) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		log.G(ctx).WithField("op", op).Warn("session: mutation dropped, session closed")
		return ErrSessionClosed
	}
	select {
	case s.mailbox <- mutation{op: op, apply: apply}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchWait submits a mutation and blocks until it has been applied and
// its snapshot published.
func (s *Session) dispatchWait(ctx context.Context, op string, apply func(*state)) error {
	done := make(chan struct{})
	if err := s.dispatch(ctx, op, func(st *state) {
		apply(st)
		close(done)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.stoppedCh:
		// The drain may have applied it just before the loop exited.
		select {
		case <-done:
			return nil
		default:
			return ErrSessionClosed
		}
	}
}

// Snapshot returns the most recently published state. Safe from any
// goroutine.
func (s *Session) Snapshot() *Snapshot {
	return s.current.Load()
}

// Subscribe returns a channel of published snapshots, seeded with the
// current one. A slow receiver observes coalesced snapshots: intermediate
// states may be skipped but the latest is always deliverable. The
// subscription ends, and the channel is closed, when ctx is done or the
// session closes.
func (s *Session) Subscribe(ctx context.Context) <-chan *Snapshot {
	ch := make(chan *Snapshot, s.subBuf)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	sendCoalesced(ch, s.current.Load())
	s.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stoppedCh:
		}
		s.subMu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.subMu.Unlock()
	}()

	return ch
}

// broadcast fans a snapshot out to all subscribers. Only the confinement
// loop sends on subscriber channels, so the coalescing send terminates.
func (s *Session) broadcast(snap *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		sendCoalesced(ch, snap)
	}
}

// sendCoalesced delivers snap, displacing a stale undelivered snapshot if
// the channel is full.
func sendCoalesced(ch chan *Snapshot, snap *Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// closeSubscribers closes all remaining subscriber channels. Runs on the
// confinement loop during shutdown.
func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Close shuts down the confinement loop and waits for it to finish.
// Mutations accepted before Close are still applied. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()
		close(s.stopCh)
	})
	<-s.stoppedCh
}
