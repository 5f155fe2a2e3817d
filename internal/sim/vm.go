// Package sim provides in-memory implementations of the collaborator
// contracts in internal/vmm. They back the vmsession-sim binary and serve
// as scriptable event producers in tests; nothing here talks to a real
// hypervisor or device transport.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// VM is a scripted VM runtime. State transitions are emitted to the
// registered lifecycle handler from the caller's goroutine, which is enough
// to exercise the coordinator's confinement: callers may drive a VM from as
// many goroutines as they like.
type VM struct {
	mu        sync.Mutex
	state     vmm.VMState
	handler   vmm.LifecycleHandler
	snapshot  bool
	stepDelay time.Duration

	savedStateDeleted bool
	lastPauseSave     bool
	pauseRequested    bool
	resetRequests     int
}

// VMOption configures a simulated VM.
type VMOption func(*VM)

// WithSnapshotBoot marks the VM as started from a snapshot restore.
func WithSnapshotBoot() VMOption {
	return func(v *VM) { v.snapshot = true }
}

// WithStepDelay inserts a delay before each emitted state transition,
// approximating real runtime latency.
func WithStepDelay(d time.Duration) VMOption {
	return func(v *VM) { v.stepDelay = d }
}

// NewVM creates a stopped simulated VM.
func NewVM(opts ...VMOption) *VM {
	v := &VM{state: vmm.StateStopped}
	for _, o := range opts {
		o(v)
	}
	return v
}

// SetLifecycleHandler registers the notification sink for state transitions
// and fatal errors.
func (v *VM) SetLifecycleHandler(h vmm.LifecycleHandler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handler = h
}

func (v *VM) transition(s vmm.VMState) {
	v.mu.Lock()
	v.state = s
	h := v.handler
	delay := v.stepDelay
	v.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if h != nil {
		h.StateTransitioned(s)
	}
}

// Start boots the VM: Starting, then Started.
func (v *VM) Start(ctx context.Context) error {
	if v.State() != vmm.StateStopped {
		return fmt.Errorf("cannot start VM in state %s", v.State())
	}
	log.G(ctx).Debug("sim: vm starting")
	v.transition(vmm.StateStarting)
	v.transition(vmm.StateStarted)
	return nil
}

// FailFatal emits a fatal error followed by the Stopped transition the real
// runtime delivers after a crash.
func (v *VM) FailFatal(message string) {
	v.mu.Lock()
	h := v.handler
	v.mu.Unlock()

	if h != nil {
		h.FatalError(message)
	}
	v.transition(vmm.StateStopping)
	v.transition(vmm.StateStopped)
}

// RequestStop drives Stopping then Stopped and returns once stopped.
func (v *VM) RequestStop(ctx context.Context) error {
	log.G(ctx).Debug("sim: vm stop requested")
	v.transition(vmm.StateStopping)
	v.transition(vmm.StateStopped)
	return nil
}

// RequestPause drives Pausing then Paused, recording the save flag.
func (v *VM) RequestPause(ctx context.Context, save bool) error {
	if v.State() != vmm.StateStarted {
		return fmt.Errorf("cannot pause VM in state %s", v.State())
	}
	v.mu.Lock()
	v.pauseRequested = true
	v.lastPauseSave = save
	v.mu.Unlock()

	log.G(ctx).WithField("save", save).Debug("sim: vm pause requested")
	v.transition(vmm.StatePausing)
	v.transition(vmm.StatePaused)
	return nil
}

// RequestResume drives Resuming then Started.
func (v *VM) RequestResume(ctx context.Context) error {
	if v.State() != vmm.StatePaused {
		return fmt.Errorf("cannot resume VM in state %s", v.State())
	}
	log.G(ctx).Debug("sim: vm resume requested")
	v.transition(vmm.StateResuming)
	v.transition(vmm.StateStarted)
	return nil
}

// RequestReset reboots a running VM without an intermediate Stopped state.
func (v *VM) RequestReset(ctx context.Context) error {
	v.mu.Lock()
	v.resetRequests++
	v.mu.Unlock()

	log.G(ctx).Debug("sim: vm reset requested")
	v.transition(vmm.StateStarting)
	v.transition(vmm.StateStarted)
	return nil
}

// DeleteSavedState records that the persisted guest snapshot was removed.
func (v *VM) DeleteSavedState(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.savedStateDeleted = true
	return nil
}

// RunningAsSnapshot reports whether the VM booted from a snapshot restore.
func (v *VM) RunningAsSnapshot() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

// State returns the current lifecycle state.
func (v *VM) State() vmm.VMState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SavedStateDeleted reports whether DeleteSavedState was called.
func (v *VM) SavedStateDeleted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.savedStateDeleted
}

// LastPauseSave returns the save flag of the most recent pause request and
// whether a pause was requested at all.
func (v *VM) LastPauseSave() (save, requested bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastPauseSave, v.pauseRequested
}

// ResetRequests returns how many resets were requested.
func (v *VM) ResetRequests() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resetRequests
}
