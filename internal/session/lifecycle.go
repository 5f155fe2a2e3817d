package session

import (
	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// lifecycleEvents routes VM power-state and fatal-error notifications into
// the confinement loop. It is a pure notification sink: no retries, and at
// most one pending error message is retained (latest overwrites).
type lifecycleEvents struct {
	s *Session
}

// LifecycleEvents returns the handler to register with the VM runtime's
// notification source.
func (s *Session) LifecycleEvents() vmm.LifecycleHandler {
	return lifecycleEvents{s: s}
}

// StateTransitioned records the new VM status. A transition to Stopped also
// clears both device lists in the same mutation, so no snapshot ever shows
// a stopped VM with leftover devices.
func (l lifecycleEvents) StateTransitioned(newState vmm.VMState) {
	s := l.s
	log.G(s.ctx).WithField("state", newState.String()).Debug("session: vm state transition")

	_ = s.dispatch(s.ctx, "lifecycle/state", func(st *state) {
		st.vmStatus = newState
		if newState == vmm.StateStopped {
			st.clearDevices()
		}
	})
}

// FatalError records the runtime-reported failure. The VM status is left
// alone; the runtime is expected to follow up with a Stopped transition.
func (l lifecycleEvents) FatalError(message string) {
	s := l.s
	log.G(s.ctx).WithField("error", message).Warn("session: vm fatal error")

	_ = s.dispatch(s.ctx, "lifecycle/fatal", func(st *state) {
		st.fatalError = message
	})
}
