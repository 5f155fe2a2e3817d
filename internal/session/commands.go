package session

import (
	"context"

	"github.com/containerd/log"

	"github.com/spin-stack/vmsession/internal/vmm"
)

// The command façade translates user intent into requests against the VM
// controller. Commands never mutate session state directly: the resulting
// lifecycle notifications reconcile the published status.

// PowerDown deletes any saved guest state, stops the VM, and hands off to
// the terminator once the stop has completed. Blocks the calling goroutine
// until the stop request finishes.
func (s *Session) PowerDown(ctx context.Context) error {
	log.G(ctx).Info("session: power down requested")

	if err := s.vm.DeleteSavedState(ctx); err != nil {
		// Stale saved state is not worth aborting a power down over.
		log.G(ctx).WithError(err).Warn("session: failed to delete saved state")
	}

	if err := s.vm.RequestStop(ctx); err != nil {
		return err
	}

	s.terminator.BeginBackgroundTransition(ctx)
	s.terminator.Terminate(ctx)
	return nil
}

// PauseResume pauses a started VM or resumes a paused one; any other state
// is a no-op. A pause saves guest state unless the session was started from
// a snapshot restore.
func (s *Session) PauseResume(ctx context.Context) error {
	switch current := s.vm.State(); current {
	case vmm.StateStarted:
		save := !s.vm.RunningAsSnapshot()
		log.G(ctx).WithField("save", save).Info("session: pause requested")
		return s.vm.RequestPause(ctx, save)
	case vmm.StatePaused:
		log.G(ctx).Info("session: resume requested")
		return s.vm.RequestResume(ctx)
	default:
		log.G(ctx).WithField("state", current.String()).Debug("session: pause/resume ignored")
		return nil
	}
}

// Reset requests a VM reset unconditionally. The subsequent lifecycle
// notifications reconcile the published status.
func (s *Session) Reset(ctx context.Context) error {
	log.G(ctx).Info("session: reset requested")
	return s.vm.RequestReset(ctx)
}
