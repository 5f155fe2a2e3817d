package sim

import (
	"sync"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// IONotifier mints guest I/O resource handles and pushes create, destroy,
// and update notifications to the registered handler, standing in for the
// runtime's display/serial/input plumbing.
type IONotifier struct {
	mu      sync.Mutex
	handler vmm.IOHandler
}

// NewIONotifier creates an idle notifier.
func NewIONotifier() *IONotifier {
	return &IONotifier{}
}

// SetIOHandler registers the notification sink.
func (n *IONotifier) SetIOHandler(h vmm.IOHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

func (n *IONotifier) sink() vmm.IOHandler {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handler
}

// CreateInput emits an input-create notification and returns the handle.
func (n *IONotifier) CreateInput(name string) vmm.InputHandle {
	h := vmm.InputHandle{ID: vmm.NewHandleID(), Name: name}
	if s := n.sink(); s != nil {
		s.InputCreated(h)
	}
	return h
}

// DestroyInput emits an input-destroy notification.
func (n *IONotifier) DestroyInput(h vmm.InputHandle) {
	if s := n.sink(); s != nil {
		s.InputDestroyed(h)
	}
}

// CreateDisplay emits a display-create notification carrying the primary
// tag and returns the handle.
func (n *IONotifier) CreateDisplay(name string, primary bool) vmm.DisplayHandle {
	h := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: name}
	if s := n.sink(); s != nil {
		s.DisplayCreated(h, primary)
	}
	return h
}

// UpdateDisplay emits a display-update notification.
func (n *IONotifier) UpdateDisplay(h vmm.DisplayHandle) {
	if s := n.sink(); s != nil {
		s.DisplayUpdated(h)
	}
}

// DestroyDisplay emits a display-destroy notification.
func (n *IONotifier) DestroyDisplay(h vmm.DisplayHandle) {
	if s := n.sink(); s != nil {
		s.DisplayDestroyed(h)
	}
}

// CreateSerial emits a serial-create notification and returns the handle.
func (n *IONotifier) CreateSerial(name string) vmm.SerialHandle {
	h := vmm.SerialHandle{ID: vmm.NewHandleID(), Name: name}
	if s := n.sink(); s != nil {
		s.SerialCreated(h)
	}
	return h
}

// DestroySerial emits a serial-destroy notification.
func (n *IONotifier) DestroySerial(h vmm.SerialHandle) {
	if s := n.sink(); s != nil {
		s.SerialDestroyed(h)
	}
}
