package session

import (
	"slices"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// state is the single source of truth for a session. It is owned by the
// confinement goroutine; nothing outside the run loop may touch it.
type state struct {
	vmStatus      vmm.VMState
	fatalError    string
	nonfatalError string

	primaryInput   *vmm.InputHandle
	primaryDisplay *vmm.DisplayHandle
	otherDisplays  []vmm.DisplayHandle
	primarySerial  *vmm.SerialHandle
	otherSerials   []vmm.SerialHandle

	deviceManager    vmm.DeviceManager
	knownDevices     []vmm.DeviceHandle
	connectedDevices []vmm.DeviceHandle
	deviceOpBusy     bool
	lastAttached     *vmm.DeviceHandle
}

// Snapshot is an immutable copy of the session state, published after every
// mutation. Error fields are single-slot: empty means none, otherwise the
// most recent message.
type Snapshot struct {
	VMStatus      vmm.VMState
	FatalError    string
	NonfatalError string

	PrimaryInput   *vmm.InputHandle
	PrimaryDisplay *vmm.DisplayHandle
	OtherDisplays  []vmm.DisplayHandle
	PrimarySerial  *vmm.SerialHandle
	OtherSerials   []vmm.SerialHandle

	// DeviceManager is the handle of the currently bound manager, nil when
	// the session is detached from the device subsystem.
	DeviceManager *vmm.DeviceManagerHandle

	KnownDevices             []vmm.DeviceHandle
	ConnectedDevices         []vmm.DeviceHandle
	DeviceOpBusy             bool
	MostRecentAttachedDevice *vmm.DeviceHandle
}

// snapshot produces a published copy. Handles are value types, so cloning
// the slices and re-boxing the optional pointers is a deep copy.
func (st *state) snapshot() *Snapshot {
	snap := &Snapshot{
		VMStatus:                 st.vmStatus,
		FatalError:               st.fatalError,
		NonfatalError:            st.nonfatalError,
		PrimaryInput:             cloneHandle(st.primaryInput),
		PrimaryDisplay:           cloneHandle(st.primaryDisplay),
		OtherDisplays:            slices.Clone(st.otherDisplays),
		PrimarySerial:            cloneHandle(st.primarySerial),
		OtherSerials:             slices.Clone(st.otherSerials),
		KnownDevices:             slices.Clone(st.knownDevices),
		ConnectedDevices:         slices.Clone(st.connectedDevices),
		DeviceOpBusy:             st.deviceOpBusy,
		MostRecentAttachedDevice: cloneHandle(st.lastAttached),
	}
	if st.deviceManager != nil {
		h := st.deviceManager.Handle()
		snap.DeviceManager = &h
	}
	return snap
}

// clearDevices empties both device lists. Called on a Stopped transition in
// the same mutation that records the transition.
func (st *state) clearDevices() {
	st.knownDevices = nil
	st.connectedDevices = nil
}

// managerCurrent reports whether the given manager identity is still the
// session's bound manager. Late results and events from a superseded
// binding fail this check and are discarded on apply.
func (st *state) managerCurrent(id vmm.HandleID) bool {
	return st.deviceManager != nil && st.deviceManager.Handle().ID == id
}

func cloneHandle[H any](h *H) *H {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}
