package session

import (
	"slices"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// ioEvents enforces the one-primary-of-each-kind discipline over the
// runtime's I/O resource notification streams. Destroy notifications clear
// a primary only on identity match; late or duplicate destroys for a
// resource that is no longer primary are ignored.
type ioEvents struct {
	s *Session
}

// IOEvents returns the handler to register with the runtime's I/O
// notification source.
func (s *Session) IOEvents() vmm.IOHandler {
	return ioEvents{s: s}
}

// InputCreated adopts the input as primary only when none is set. There is
// no secondary-input tracking.
func (io ioEvents) InputCreated(h vmm.InputHandle) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/input-created", func(st *state) {
		if st.primaryInput != nil {
			log.G(s.ctx).WithField("input", h.Name).Debug("session: ignoring extra input")
			return
		}
		st.primaryInput = &h
	})
}

func (io ioEvents) InputDestroyed(h vmm.InputHandle) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/input-destroyed", func(st *state) {
		if st.primaryInput != nil && st.primaryInput.ID == h.ID {
			st.primaryInput = nil
		}
	})
}

// DisplayCreated adopts the display as primary only when the runtime tagged
// it primary at creation and no primary is set; every other display is
// tracked in arrival order.
func (io ioEvents) DisplayCreated(h vmm.DisplayHandle, primary bool) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/display-created", func(st *state) {
		if primary && st.primaryDisplay == nil {
			st.primaryDisplay = &h
			return
		}
		st.otherDisplays = append(st.otherDisplays, h)
	})
}

// DisplayUpdated is a pass-through notification; it is not persisted.
func (io ioEvents) DisplayUpdated(h vmm.DisplayHandle) {
	log.G(io.s.ctx).WithField("display", h.Name).Trace("session: display updated")
}

func (io ioEvents) DisplayDestroyed(h vmm.DisplayHandle) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/display-destroyed", func(st *state) {
		if st.primaryDisplay != nil && st.primaryDisplay.ID == h.ID {
			st.primaryDisplay = nil
			return
		}
		st.otherDisplays = slices.DeleteFunc(st.otherDisplays, func(d vmm.DisplayHandle) bool {
			return d.ID == h.ID
		})
	})
}

// SerialCreated makes the first created serial port primary unconditionally;
// "first" is decided by delivery order onto the confinement loop. Later
// ports are tracked in arrival order.
func (io ioEvents) SerialCreated(h vmm.SerialHandle) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/serial-created", func(st *state) {
		if st.primarySerial == nil {
			st.primarySerial = &h
			return
		}
		st.otherSerials = append(st.otherSerials, h)
	})
}

func (io ioEvents) SerialDestroyed(h vmm.SerialHandle) {
	s := io.s
	_ = s.dispatch(s.ctx, "io/serial-destroyed", func(st *state) {
		if st.primarySerial != nil && st.primarySerial.ID == h.ID {
			st.primarySerial = nil
			return
		}
		st.otherSerials = slices.DeleteFunc(st.otherSerials, func(sp vmm.SerialHandle) bool {
			return sp.ID == h.ID
		})
	})
}
