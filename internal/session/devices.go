package session

import (
	"context"
	"slices"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// Device operations (refresh, connect, disconnect) follow the same shape:
// the busy flag and the manager binding are checked and claimed on the
// confinement loop, the transport call runs on the caller's goroutine for
// an unbounded time, and the result is applied as one confined mutation
// tagged with the identity of the manager it ran against. A result arriving
// after the manager binding was swapped clears the busy flag but never
// touches the device lists.

// beginDeviceOp claims the busy flag on the confinement loop and returns
// the manager the operation must run against. A missing manager or an
// in-flight operation skips the request without mutating state.
func (s *Session) beginDeviceOp(ctx context.Context, op string) (vmm.DeviceManager, error) {
	var (
		mgr      vmm.DeviceManager
		beginErr error
	)
	if err := s.dispatchWait(ctx, op+"/begin", func(st *state) {
		switch {
		case st.deviceManager == nil:
			beginErr = ErrNoDeviceManager
		case st.deviceOpBusy:
			beginErr = ErrDeviceOpInFlight
		default:
			st.deviceOpBusy = true
			mgr = st.deviceManager
		}
	}); err != nil {
		return nil, err
	}
	if beginErr != nil {
		log.G(ctx).WithField("op", op).WithError(beginErr).Warn("devices: operation skipped")
		return nil, beginErr
	}
	return mgr, nil
}

// RefreshDevices asks the bound manager for its full device list and
// replaces KnownDevices with the result. Blocks the calling goroutine for
// the duration of the transport call, never the confinement loop.
func (s *Session) RefreshDevices(ctx context.Context) error {
	mgr, err := s.beginDeviceOp(ctx, "devices/refresh")
	if err != nil {
		return err
	}
	mgrID := mgr.Handle().ID

	devices, listErr := mgr.ListDevices(ctx)

	// The completion is delivered on a non-cancellable context: the busy
	// flag claimed above must be released even when the caller's context is
	// cancelled mid-transport.
	return s.dispatchWait(context.WithoutCancel(ctx), "devices/refresh/apply", func(st *state) {
		st.deviceOpBusy = false
		if !st.managerCurrent(mgrID) {
			log.G(ctx).WithField("manager", string(mgrID)).Debug("devices: discarding refresh result from superseded manager")
			return
		}
		if listErr != nil {
			st.nonfatalError = listErr.Error()
			return
		}
		st.knownDevices = slices.Clone(devices)
	})
}

// ConnectDevice asks the bound manager to connect the device. On success
// the device is appended to ConnectedDevices (once, by identity); a
// transport failure records its message as the nonfatal error and leaves
// the lists unchanged.
func (s *Session) ConnectDevice(ctx context.Context, device vmm.DeviceHandle) error {
	mgr, err := s.beginDeviceOp(ctx, "devices/connect")
	if err != nil {
		return err
	}
	mgrID := mgr.Handle().ID

	connectErr := mgr.Connect(ctx, device)

	return s.dispatchWait(context.WithoutCancel(ctx), "devices/connect/apply", func(st *state) {
		st.deviceOpBusy = false
		if !st.managerCurrent(mgrID) {
			log.G(ctx).WithField("manager", string(mgrID)).Debug("devices: discarding connect result from superseded manager")
			return
		}
		if connectErr != nil {
			st.nonfatalError = connectErr.Error()
			return
		}
		if !slices.ContainsFunc(st.connectedDevices, func(d vmm.DeviceHandle) bool { return d.ID == device.ID }) {
			st.connectedDevices = append(st.connectedDevices, device)
		}
	})
}

// DisconnectDevice asks the bound manager to disconnect the device and
// purges every entry with its identity from ConnectedDevices. Transport
// disconnects are modeled as always succeeding; an error is diagnostic only
// and never blocks the purge.
func (s *Session) DisconnectDevice(ctx context.Context, device vmm.DeviceHandle) error {
	mgr, err := s.beginDeviceOp(ctx, "devices/disconnect")
	if err != nil {
		return err
	}

	if err := mgr.Disconnect(ctx, device); err != nil {
		log.G(ctx).WithError(err).WithField("device", device.Name).Warn("devices: disconnect reported an error")
	}

	return s.dispatchWait(context.WithoutCancel(ctx), "devices/disconnect/apply", func(st *state) {
		st.deviceOpBusy = false
		st.connectedDevices = slices.DeleteFunc(st.connectedDevices, func(d vmm.DeviceHandle) bool {
			return d.ID == device.ID
		})
	})
}

// deviceEvents routes removable-device notifications into the confinement
// loop. Every event carries the identity of the manager binding that
// produced it; events from a superseded binding are discarded on apply.
type deviceEvents struct {
	s *Session
}

// DeviceEvents returns the handler to register with the device subsystem's
// notification source.
func (s *Session) DeviceEvents() vmm.DeviceHandler {
	return deviceEvents{s: s}
}

// DeviceAttached records the most recently attached device. Attachment is
// not connection: neither device list changes, and KnownDevices is only
// rebuilt by an explicit refresh.
func (d deviceEvents) DeviceAttached(mgr vmm.DeviceManagerHandle, device vmm.DeviceHandle) {
	s := d.s
	_ = s.dispatch(s.ctx, "devices/attached", func(st *state) {
		if !st.managerCurrent(mgr.ID) {
			log.G(s.ctx).WithField("device", device.Name).Debug("devices: discarding attach from superseded manager")
			return
		}
		st.lastAttached = &device
	})
}

// DeviceRemoved purges the device from ConnectedDevices by identity. The
// removal is runtime-driven, so it bypasses the busy flag and the transport
// round trip entirely.
func (d deviceEvents) DeviceRemoved(mgr vmm.DeviceManagerHandle, device vmm.DeviceHandle) {
	s := d.s
	_ = s.dispatch(s.ctx, "devices/removed", func(st *state) {
		if !st.managerCurrent(mgr.ID) {
			log.G(s.ctx).WithField("device", device.Name).Debug("devices: discarding removal from superseded manager")
			return
		}
		st.connectedDevices = slices.DeleteFunc(st.connectedDevices, func(dev vmm.DeviceHandle) bool {
			return dev.ID == device.ID
		})
	})
}

// DeviceError records the message as the nonfatal error; device lists are
// untouched.
func (d deviceEvents) DeviceError(mgr vmm.DeviceManagerHandle, device vmm.DeviceHandle, message string) {
	s := d.s
	log.G(s.ctx).WithFields(log.Fields{
		"device": device.Name,
		"error":  message,
	}).Warn("devices: device reported an error")

	_ = s.dispatch(s.ctx, "devices/error", func(st *state) {
		if !st.managerCurrent(mgr.ID) {
			return
		}
		st.nonfatalError = message
	})
}

// DeviceManagerChanged swaps the bound manager in a single mutation.
// In-flight results and events against the old manager fail the identity
// check on apply from this point on; a nil manager detaches the session.
func (d deviceEvents) DeviceManagerChanged(mgr vmm.DeviceManager) {
	s := d.s
	_ = s.dispatch(s.ctx, "devices/manager-changed", func(st *state) {
		st.deviceManager = mgr
	})
}
