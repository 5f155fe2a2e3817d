package session

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Sentinel errors for session operations. Use errors.Is() to check them;
// each also matches its errdefs class.
var (
	// ErrNoDeviceManager indicates a device operation was requested while no
	// device manager is bound. The operation is skipped without mutating
	// session state.
	ErrNoDeviceManager = fmt.Errorf("no device manager bound: %w", errdefs.ErrFailedPrecondition)

	// ErrDeviceOpInFlight indicates a device operation was requested while
	// another one is still in flight. The busy flag is a single-operation
	// mutex, not a queue: the new request is rejected.
	ErrDeviceOpInFlight = fmt.Errorf("device operation already in flight: %w", errdefs.ErrFailedPrecondition)

	// ErrSessionClosed indicates the session's confinement loop has been
	// shut down and no further mutations are accepted.
	ErrSessionClosed = fmt.Errorf("session closed: %w", errdefs.ErrUnavailable)
)
