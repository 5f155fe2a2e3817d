// vmsession-sim wires the session coordinator to simulated collaborators
// and drives a scripted scenario: boot, I/O hotplug, device operations from
// concurrent producers, and a final power down. Snapshots are printed as
// they are published, so the observable ordering guarantees can be watched
// from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/spin-stack/vmsession/internal/config"
	"github.com/spin-stack/vmsession/internal/session"
	"github.com/spin-stack/vmsession/internal/sim"
	"github.com/spin-stack/vmsession/internal/version"
	"github.com/spin-stack/vmsession/internal/vmm"
)

var flagDebug bool

func main() {
	rootCmd := &cobra.Command{
		Use:     "vmsession-sim",
		Short:   "Run a simulated VM session against the coordinator",
		Version: version.Info(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				if err := log.SetLevel("debug"); err != nil {
					return err
				}
			}
			return run(cmd.Context())
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	vm := sim.NewVM(sim.WithStepDelay(cfg.Sim.GetStepDelay()))
	terminator := sim.NewTerminator(cfg.Termination.GetGrace())
	ioSrc := sim.NewIONotifier()
	manager := sim.NewDeviceManager("usb0", sim.WithLatency(cfg.Sim.GetDeviceLatency()))

	sess := session.New(ctx, vm, terminator, cfg)
	defer sess.Close()

	vm.SetLifecycleHandler(sess.LifecycleEvents())
	ioSrc.SetIOHandler(sess.IOEvents())
	manager.SetDeviceHandler(sess.DeviceEvents())
	sess.DeviceEvents().DeviceManagerChanged(manager)

	// Print every published snapshot.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		for snap := range sess.Subscribe(watchCtx) {
			fmt.Println(render(snap))
		}
	}()

	if err := vm.Start(ctx); err != nil {
		return err
	}

	// Concurrent producers: I/O hotplug on one goroutine, device traffic on
	// another, exactly the delivery pattern the coordinator exists to tame.
	var producers sync.WaitGroup
	producers.Add(2)

	go func() {
		defer producers.Done()
		ioSrc.CreateInput("keyboard")
		display := ioSrc.CreateDisplay("console", true)
		ioSrc.CreateDisplay("aux", false)
		ioSrc.CreateSerial("ttyS0")
		ioSrc.UpdateDisplay(display)
	}()

	var stick vmm.DeviceHandle
	go func() {
		defer producers.Done()
		stick = manager.AttachDevice("usb-stick")
		if err := sess.RefreshDevices(ctx); err != nil {
			log.G(ctx).WithError(err).Warn("sim: refresh failed")
		}
		if err := sess.ConnectDevice(ctx, stick); err != nil {
			log.G(ctx).WithError(err).Warn("sim: connect failed")
		}
	}()

	producers.Wait()

	if err := sess.PauseResume(ctx); err != nil {
		return err
	}
	if err := sess.PauseResume(ctx); err != nil {
		return err
	}
	if err := sess.DisconnectDevice(ctx, stick); err != nil {
		log.G(ctx).WithError(err).Warn("sim: disconnect failed")
	}

	if err := sess.PowerDown(ctx); err != nil {
		return err
	}
	<-terminator.Done()

	cancelWatch()
	printer.Wait()

	fmt.Println("session complete")
	return nil
}

// render formats a snapshot as a single status line.
func render(snap *session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", snap.VMStatus)
	if snap.PrimaryInput != nil {
		fmt.Fprintf(&b, " input=%s", snap.PrimaryInput.Name)
	}
	if snap.PrimaryDisplay != nil {
		fmt.Fprintf(&b, " display=%s(+%d)", snap.PrimaryDisplay.Name, len(snap.OtherDisplays))
	}
	if snap.PrimarySerial != nil {
		fmt.Fprintf(&b, " serial=%s(+%d)", snap.PrimarySerial.Name, len(snap.OtherSerials))
	}
	fmt.Fprintf(&b, " devices=%d connected=%d busy=%t", len(snap.KnownDevices), len(snap.ConnectedDevices), snap.DeviceOpBusy)
	if snap.NonfatalError != "" {
		fmt.Fprintf(&b, " warn=%q", snap.NonfatalError)
	}
	if snap.FatalError != "" {
		fmt.Fprintf(&b, " fatal=%q", snap.FatalError)
	}
	return b.String()
}
