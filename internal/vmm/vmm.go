// Package vmm defines the collaborator contracts consumed by the session
// coordinator: the VM runtime, the guest I/O resource notifier, the
// removable-device subsystem, and the application terminator. Concrete
// implementations live outside the coordination core (or in internal/sim
// for testing and demonstration).
package vmm

import "context"

// Controller is the command surface of the VM runtime. Request methods may
// take unbounded wall-clock time; callers must not invoke them from the
// session's confinement goroutine.
type Controller interface {
	// RequestStop asks the runtime to stop the VM and returns once the stop
	// request has completed. A Stopped state transition is delivered
	// separately through the LifecycleHandler.
	RequestStop(ctx context.Context) error

	// RequestPause suspends the VM, persisting a snapshot of guest state
	// when save is true.
	RequestPause(ctx context.Context, save bool) error

	// RequestResume resumes a paused VM.
	RequestResume(ctx context.Context) error

	// RequestReset reboots the VM without a state round trip; the resulting
	// state transitions arrive as lifecycle notifications.
	RequestReset(ctx context.Context) error

	// DeleteSavedState removes any persisted guest snapshot.
	DeleteSavedState(ctx context.Context) error

	// RunningAsSnapshot reports whether the current session was started by
	// restoring a saved snapshot.
	RunningAsSnapshot() bool

	// State is a synchronous read of the runtime's current lifecycle state.
	State() VMState
}

// DeviceManager is the removable-device subsystem bound to a session. The
// binding can be replaced at any time; every manager carries a stable
// identity so that late results from a previous binding can be rejected.
type DeviceManager interface {
	// Handle returns the identity of this manager binding.
	Handle() DeviceManagerHandle

	// ListDevices returns the full set of devices the subsystem currently
	// knows about. May block for an unbounded time.
	ListDevices(ctx context.Context) ([]DeviceHandle, error)

	// Connect attaches the device to the guest. A non-nil error carries the
	// transport's failure message.
	Connect(ctx context.Context, device DeviceHandle) error

	// Disconnect detaches the device from the guest. Transport-level
	// disconnects are modeled as always succeeding; an error here is
	// diagnostic only.
	Disconnect(ctx context.Context, device DeviceHandle) error
}

// LifecycleHandler receives VM power-state and fatal-error notifications.
// Implementations must be safe to call from arbitrary goroutines.
type LifecycleHandler interface {
	StateTransitioned(newState VMState)
	FatalError(message string)
}

// IOHandler receives create/destroy/update notifications for guest input,
// display, and serial resources. Implementations must be safe to call from
// arbitrary goroutines.
type IOHandler interface {
	InputCreated(h InputHandle)
	InputDestroyed(h InputHandle)

	// DisplayCreated delivers a new display together with the runtime's
	// primary tag, decided once at creation time.
	DisplayCreated(h DisplayHandle, primary bool)
	DisplayUpdated(h DisplayHandle)
	DisplayDestroyed(h DisplayHandle)

	SerialCreated(h SerialHandle)
	SerialDestroyed(h SerialHandle)
}

// DeviceHandler receives removable-device notifications. Every device event
// carries the handle of the manager binding that produced it so the
// coordinator can discard events from a superseded binding. Implementations
// must be safe to call from arbitrary goroutines.
type DeviceHandler interface {
	DeviceAttached(mgr DeviceManagerHandle, device DeviceHandle)
	DeviceRemoved(mgr DeviceManagerHandle, device DeviceHandle)
	DeviceError(mgr DeviceManagerHandle, device DeviceHandle, message string)

	// DeviceManagerChanged swaps the bound manager. A nil manager detaches
	// the session from the device subsystem entirely.
	DeviceManagerChanged(mgr DeviceManager)
}

// Terminator sequences application termination after a session stop
// completes: a background-transition signal followed, after an external
// grace period owned by the implementation, by process termination.
type Terminator interface {
	BeginBackgroundTransition(ctx context.Context)
	Terminate(ctx context.Context)
}
