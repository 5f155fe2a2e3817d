package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spin-stack/vmsession/internal/vmm"
)

func TestInputFirstCreateWins(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	kbd := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "kbd"}
	tablet := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "tablet"}

	io.InputCreated(kbd)
	io.InputCreated(tablet)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimaryInput)
	assert.Equal(t, kbd.ID, snap.PrimaryInput.ID)
}

func TestInputDestroyRequiresIdentityMatch(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	kbd := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "kbd"}
	stale := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "stale"}

	io.InputCreated(kbd)
	io.InputDestroyed(stale) // late notification for a never-adopted input

	snap := flush(t, s)
	require.NotNil(t, snap.PrimaryInput)
	assert.Equal(t, kbd.ID, snap.PrimaryInput.ID)

	io.InputDestroyed(kbd)
	io.InputDestroyed(kbd) // duplicate destroy is ignored

	snap = flush(t, s)
	assert.Nil(t, snap.PrimaryInput)
}

func TestPrimaryTrackingAfterDestroyAllowsNewPrimary(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	first := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "first"}
	second := vmm.InputHandle{ID: vmm.NewHandleID(), Name: "second"}

	io.InputCreated(first)
	io.InputDestroyed(first)
	io.InputCreated(second)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimaryInput)
	assert.Equal(t, second.ID, snap.PrimaryInput.ID)
}

func TestDisplayPrimaryTagDecidesPrimary(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	d1 := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "console"}
	d2 := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "aux"}

	io.DisplayCreated(d1, true)
	io.DisplayCreated(d2, false)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimaryDisplay)
	assert.Equal(t, d1.ID, snap.PrimaryDisplay.ID)
	require.Len(t, snap.OtherDisplays, 1)
	assert.Equal(t, d2.ID, snap.OtherDisplays[0].ID)
}

func TestUntaggedDisplayNeverBecomesPrimary(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	d := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "aux"}
	io.DisplayCreated(d, false)

	snap := flush(t, s)
	assert.Nil(t, snap.PrimaryDisplay)
	require.Len(t, snap.OtherDisplays, 1)
	assert.Equal(t, d.ID, snap.OtherDisplays[0].ID)
}

func TestDisplayDestroyClearsPrimaryOrPrunesOthers(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	primary := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "console"}
	aux := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "aux"}

	io.DisplayCreated(primary, true)
	io.DisplayCreated(aux, false)
	io.DisplayDestroyed(aux)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimaryDisplay)
	assert.Empty(t, snap.OtherDisplays)

	io.DisplayDestroyed(primary)

	snap = flush(t, s)
	assert.Nil(t, snap.PrimaryDisplay)
}

func TestDisplayUpdateIsNotPersisted(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	d := vmm.DisplayHandle{ID: vmm.NewHandleID(), Name: "console"}
	io.DisplayCreated(d, true)
	before := flush(t, s)

	io.DisplayUpdated(d)
	after := flush(t, s)

	assert.Equal(t, before.PrimaryDisplay, after.PrimaryDisplay)
	assert.Equal(t, before.OtherDisplays, after.OtherDisplays)
}

func TestSerialFirstCreatedBecomesPrimary(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	tty0 := vmm.SerialHandle{ID: vmm.NewHandleID(), Name: "ttyS0"}
	tty1 := vmm.SerialHandle{ID: vmm.NewHandleID(), Name: "ttyS1"}

	io.SerialCreated(tty0)
	io.SerialCreated(tty1)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimarySerial)
	assert.Equal(t, tty0.ID, snap.PrimarySerial.ID)
	require.Len(t, snap.OtherSerials, 1)
	assert.Equal(t, tty1.ID, snap.OtherSerials[0].ID)
}

func TestSerialDestroySymmetry(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	io := s.IOEvents()

	tty0 := vmm.SerialHandle{ID: vmm.NewHandleID(), Name: "ttyS0"}
	tty1 := vmm.SerialHandle{ID: vmm.NewHandleID(), Name: "ttyS1"}

	io.SerialCreated(tty0)
	io.SerialCreated(tty1)
	io.SerialDestroyed(tty1)

	snap := flush(t, s)
	require.NotNil(t, snap.PrimarySerial)
	assert.Empty(t, snap.OtherSerials)

	io.SerialDestroyed(tty0)

	snap = flush(t, s)
	assert.Nil(t, snap.PrimarySerial)
	// The next serial created becomes primary again.
	io.SerialCreated(tty1)
	snap = flush(t, s)
	require.NotNil(t, snap.PrimarySerial)
	assert.Equal(t, tty1.ID, snap.PrimarySerial.ID)
}
