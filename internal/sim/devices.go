package sim

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// DeviceManager is an in-memory removable-device subsystem. Attach, remove,
// and error events are pushed to the registered handler tagged with this
// manager's identity, so swapping managers under a session behaves like the
// real subsystem.
type DeviceManager struct {
	handle vmm.DeviceManagerHandle

	mu          sync.Mutex
	devices     []vmm.DeviceHandle
	connected   map[vmm.HandleID]bool
	failConnect map[vmm.HandleID]string
	handler     vmm.DeviceHandler
	latency     time.Duration

	// release, when non-nil, blocks ListDevices until closed. Used to hold
	// a refresh in flight while the test or scenario swaps managers.
	release chan struct{}
}

// ManagerOption configures a simulated device manager.
type ManagerOption func(*DeviceManager)

// WithLatency inserts a delay into every transport call.
func WithLatency(d time.Duration) ManagerOption {
	return func(m *DeviceManager) { m.latency = d }
}

// NewDeviceManager creates an empty device manager with a fresh identity.
func NewDeviceManager(name string, opts ...ManagerOption) *DeviceManager {
	m := &DeviceManager{
		handle:      vmm.DeviceManagerHandle{ID: vmm.NewHandleID(), Name: name},
		connected:   make(map[vmm.HandleID]bool),
		failConnect: make(map[vmm.HandleID]string),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetDeviceHandler registers the notification sink for device events.
func (m *DeviceManager) SetDeviceHandler(h vmm.DeviceHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Handle returns this manager's identity.
func (m *DeviceManager) Handle() vmm.DeviceManagerHandle {
	return m.handle
}

// AttachDevice adds a device to the subsystem and emits the attach event.
func (m *DeviceManager) AttachDevice(name string) vmm.DeviceHandle {
	d := vmm.DeviceHandle{ID: vmm.NewHandleID(), Name: name}

	m.mu.Lock()
	m.devices = append(m.devices, d)
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h.DeviceAttached(m.handle, d)
	}
	return d
}

// RemoveDevice drops the device from the subsystem and emits the removal.
func (m *DeviceManager) RemoveDevice(d vmm.DeviceHandle) {
	m.mu.Lock()
	m.devices = slices.DeleteFunc(m.devices, func(dev vmm.DeviceHandle) bool { return dev.ID == d.ID })
	delete(m.connected, d.ID)
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h.DeviceRemoved(m.handle, d)
	}
}

// InjectError emits a device error event.
func (m *DeviceManager) InjectError(d vmm.DeviceHandle, message string) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h.DeviceError(m.handle, d, message)
	}
}

// FailConnect makes future Connect calls for the device fail with message.
func (m *DeviceManager) FailConnect(d vmm.DeviceHandle, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConnect[d.ID] = message
}

// HoldListDevices blocks the next ListDevices call until the returned
// function is invoked.
func (m *DeviceManager) HoldListDevices() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.release = ch
	m.mu.Unlock()
	return func() { close(ch) }
}

func (m *DeviceManager) sleep(ctx context.Context) {
	if m.latency <= 0 {
		return
	}
	select {
	case <-time.After(m.latency):
	case <-ctx.Done():
	}
}

// ListDevices returns the full device list.
func (m *DeviceManager) ListDevices(ctx context.Context) ([]vmm.DeviceHandle, error) {
	m.mu.Lock()
	hold := m.release
	m.release = nil
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.sleep(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.devices), nil
}

// Connect attaches the device to the guest, honoring injected failures.
func (m *DeviceManager) Connect(ctx context.Context, device vmm.DeviceHandle) error {
	m.sleep(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.failConnect[device.ID]; ok {
		log.G(ctx).WithField("device", device.Name).Debug("sim: injected connect failure")
		return errors.New(msg)
	}
	m.connected[device.ID] = true
	return nil
}

// Disconnect detaches the device; always succeeds.
func (m *DeviceManager) Disconnect(ctx context.Context, device vmm.DeviceHandle) error {
	m.sleep(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, device.ID)
	return nil
}

// Connected reports whether the subsystem considers the device connected.
func (m *DeviceManager) Connected(device vmm.DeviceHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[device.ID]
}
