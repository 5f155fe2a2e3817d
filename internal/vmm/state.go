package vmm

import "fmt"

// VMState represents the lifecycle state of the virtual machine as reported
// by the runtime. Transitions are driven entirely by runtime notifications;
// the coordinator records the latest reported state and never infers one.
type VMState int32

const (
	// StateStopped is the initial and terminal state.
	StateStopped VMState = iota

	// StateStarting indicates the runtime is booting the VM.
	StateStarting

	// StateStarted is the steady running state.
	StateStarted

	// StatePausing indicates a pause request is in progress.
	StatePausing

	// StatePaused indicates the VM is suspended.
	StatePaused

	// StateResuming indicates a resume request is in progress.
	StateResuming

	// StateStopping indicates a stop request is in progress.
	StateStopping
)

// String returns a human-readable name for the state.
func (s VMState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StatePausing:
		return "pausing"
	case StatePaused:
		return "paused"
	case StateResuming:
		return "resuming"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}
