package vmm

import "github.com/google/uuid"

// HandleID is the identity of a runtime-owned resource. The coordinator
// never owns the resource behind a handle; it only compares identities.
// Two handles refer to the same resource exactly when their IDs are equal.
type HandleID string

// NewHandleID mints a fresh handle identity. Collaborators that create
// resources (VM runtime, device subsystem) are expected to mint the ID once
// at creation time and carry it on every notification about that resource.
func NewHandleID() HandleID {
	return HandleID(uuid.NewString())
}

// InputHandle identifies a guest input device (keyboard, pointer).
type InputHandle struct {
	ID   HandleID
	Name string
}

// DisplayHandle identifies a guest display. Whether a display is the
// session's primary display is decided by the runtime at creation time and
// delivered alongside the create notification, not stored on the handle.
type DisplayHandle struct {
	ID   HandleID
	Name string
}

// SerialHandle identifies a guest serial port.
type SerialHandle struct {
	ID   HandleID
	Name string
}

// DeviceHandle identifies a removable device known to the device subsystem.
type DeviceHandle struct {
	ID   HandleID
	Name string
}

// DeviceManagerHandle identifies a device-manager binding. Late device
// events and operation results are accepted or rejected by comparing the
// manager identity they carry against the currently bound manager.
type DeviceManagerHandle struct {
	ID   HandleID
	Name string
}
