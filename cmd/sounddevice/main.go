// ABOUTME: sounddevice plays, records or inspects an audio device
// ABOUTME: Optionally exposes metrics over HTTP and a live TUI
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/sounddevice/internal/monitor"
	"github.com/Resonate-Protocol/sounddevice/internal/ui"
	"github.com/Resonate-Protocol/sounddevice/internal/version"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/resample"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
	"github.com/Resonate-Protocol/sounddevice/pkg/metrics"
)

// statusInterval is how often the TUI and the debug log get a snapshot
const statusInterval = 250 * time.Millisecond

// errFinished ends the run without reporting an error
var errFinished = errors.New("finished")

func deviceOptions(cfg *settings, log slog.Logger) []device.Option {
	// Quality was validated with the settings.
	quality, _ := resample.ParseQuality(cfg.Quality)
	opts := []device.Option{
		device.WithLogger(log),
		device.WithResampleQuality(quality),
	}
	if cfg.SampleRate > 0 {
		opts = append(opts, device.WithSampleRate(cfg.SampleRate))
	}
	if cfg.PeriodFrames > 0 {
		opts = append(opts, device.WithPeriodFrames(cfg.PeriodFrames))
	}
	return opts
}

func printInfo(w io.Writer, d *device.Device) {
	s := metrics.Take(d)
	fmt.Fprintf(w, "ID:           %s\n", s.ID)
	fmt.Fprintf(w, "Backend:      %s\n", s.Backend)
	fmt.Fprintf(w, "Name:         %s\n", s.Name)
	fmt.Fprintf(w, "Manufacturer: %s\n", s.Manufacturer)
	fmt.Fprintf(w, "State:        %s\n", s.State)
	rates := make([]string, len(s.SampleRates))
	for i, r := range s.SampleRates {
		rates[i] = fmt.Sprint(r)
	}
	fmt.Fprintf(w, "Sample rates: %s\n", strings.Join(rates, ", "))
	fmt.Fprintf(w, "Input:        %s\n", d.InputStreamConfig())
	fmt.Fprintf(w, "Output:       %s\n", d.OutputStreamConfig())
}

func realMain() error {
	// Settings.
	cfg, err := obtainSettings(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		printVersion(os.Stdout, version.String())
		return nil
	}

	// Log.
	logs, err := newLoggers(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	log := logs.logger("SDEV")
	log.Infof("Running %s", version.String())

	// Main context.
	errMainCtxCanceled := errors.New("main context canceled")
	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, mainCancel := context.WithCancelCause(context.Background())
	defer mainCancel(nil)
	go func() {
		select {
		case <-sigCtx.Done():
			log.Infof("Interrupt detected. Shutting down.")
			mainCancel(errMainCtxCanceled)
		case <-ctx.Done():
		}
	}()
	if cfg.Duration > 0 {
		time.AfterFunc(cfg.Duration, func() { mainCancel(errFinished) })
	}

	// Backend.
	backend, id, closer, err := openBackend(cfg, logs.logger("BKND"))
	if err != nil {
		return err
	}
	defer closer.Close()
	opts := deviceOptions(cfg, logs.logger("DEVC"))

	if cfg.Command == cmdInfo {
		d, err := device.New(id, backend, opts...)
		if err != nil {
			return err
		}
		printInfo(os.Stdout, d)
		return d.Close()
	}

	// Device and delegate. onChange can only run once the delegate is
	// installed, by which time dev and prog are set.
	var (
		dev  *device.Device
		prog *tea.Program
	)
	m := metrics.New()
	var controls *ui.Controls
	if cfg.TUI {
		controls = ui.NewControls()
		prog = ui.Run(controls, int(cfg.Gain*100))
	}

	onChange := func(kind device.ChangeKind) {
		log.Infof("Device %s changed: %s", dev.ID(), kind)
		m.ObserveChange(dev.ID(), kind)
		if prog != nil {
			prog.Send(ui.ChangeMsg{Kind: kind})
		}
	}
	sess, err := newSession(cfg, id, backend, opts, logs, onChange)
	if err != nil {
		return err
	}
	if sess.format.Valid() {
		opts = append(opts, device.WithDelegateFormat(sess.format))
	}
	dev, err = device.New(id, backend, opts...)
	if err != nil {
		sess.close()
		return err
	}
	dev.SetDelegate(sess.delegate)
	m.Add(dev)
	log.Infof("Using %q on %s for %s", dev.Name(), backend.Name(), sess.mode)

	if err := dev.Start(); err != nil {
		dev.Close()
		sess.close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Workers get their own context so a recorder drains only after the
	// device stopped pushing.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	g.Go(func() error {
		<-gctx.Done()
		err := dev.Stop()
		runCancel()
		return err
	})

	if sess.run != nil {
		g.Go(func() error {
			err := sess.run(runCtx)
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				return err
			case gctx.Err() == nil:
				log.Infof("Finished %s", sess.mode)
				return errFinished
			}
			return nil
		})
	}

	if cfg.ListenMetrics != "" {
		mon := monitor.New(m, monitor.Config{
			Addr: cfg.ListenMetrics,
			Log:  logs.logger("MNTR"),
		})
		g.Go(func() error { return mon.Run(gctx) })
	}

	if prog != nil {
		g.Go(func() error {
			if _, err := prog.Run(); err != nil {
				return err
			}
			return errFinished
		})
		g.Go(func() error {
			<-gctx.Done()
			prog.Quit()
			return nil
		})
		g.Go(func() error { return handleCommands(gctx, controls, dev, sess, log) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
			if prog == nil {
				if err := checkRunning(gctx, dev); err != nil {
					return err
				}
			}
			snap := metrics.Take(dev)
			if prog == nil {
				log.Tracef("%s cpu %.1f%% avg %.1f%% callbacks %d fallbacks %d",
					dev.ID(), snap.CPU*100, snap.AverageCPU*100,
					snap.Callbacks, snap.Fallbacks)
				continue
			}
			level := sess.level()
			prog.Send(ui.StatusMsg{Snapshot: &snap, Mode: sess.mode, Level: &level})
		}
	})

	err = g.Wait()
	stats := dev.Stats()
	log.Infof("Callbacks %d, fallbacks %d, delegate errors %d, average cpu %.1f%%",
		stats.Callbacks, stats.Fallbacks, stats.DelegateErrors, dev.AverageCPUUsage()*100)

	if errors.Is(err, errFinished) {
		err = nil
	}
	return errors.Join(err, dev.Close(), sess.close())
}

// checkRunning reports a device the backend stopped while ctx is still live.
// Without the TUI nobody can restart it, so the run ends.
func checkRunning(ctx context.Context, dev *device.Device) error {
	if ctx.Err() != nil || dev.IsRunning() {
		return nil
	}
	return fmt.Errorf("%w: %s was stopped by the backend", device.ErrNotRunning, dev.ID())
}

// handleCommands applies TUI commands to the device until ctx is done
func handleCommands(ctx context.Context, controls *ui.Controls, dev *device.Device,
	sess *session, log slog.Logger) error {

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-controls.Commands:
			switch cmd.Kind {
			case ui.CommandToggle:
				var err error
				if dev.IsRunning() {
					err = dev.Stop()
				} else {
					err = dev.Start()
				}
				if err != nil {
					log.Errorf("Unable to toggle device: %v", err)
				}
			case ui.CommandGain:
				if sess.tone != nil {
					sess.tone.SetGain(float64(cmd.Gain) / 100)
				}
			case ui.CommandQuit:
				return errFinished
			}
		}
	}
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
