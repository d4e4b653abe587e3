// ABOUTME: Tests for command sessions on the fake backend
// ABOUTME: Records and tones run end to end without audio hardware
package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/audio"
	"github.com/Resonate-Protocol/sounddevice/pkg/audio/decode"
	"github.com/Resonate-Protocol/sounddevice/pkg/backend/fake"
	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

func testSettings(t *testing.T, args ...string) *settings {
	t.Helper()
	cfg, err := obtainSettings(append([]string{"-backend", "fake", "-tui"}, args...), os.Stderr)
	if err != nil {
		t.Fatalf("obtainSettings: %v", err)
	}
	return cfg
}

func TestRecordSession(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	cfg := testSettings(t, "-channels", "2", "record", out)

	logs, err := newLoggers(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer logs.Close()

	backend, id, closer, err := openBackend(cfg, logs.logger("BKND"))
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer closer.Close()
	if id != fakeDeviceID {
		t.Errorf("expected fake device ID, got %s", id)
	}

	opts := deviceOptions(cfg, logs.logger("DEVC"))
	sess, err := newSession(cfg, id, backend, opts, logs, func(device.ChangeKind) {})
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	want := audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.SampleFormatS16}
	if sess.format != want {
		t.Fatalf("expected format %v, got %v", want, sess.format)
	}

	dev, err := device.New(id, backend, append(opts, device.WithDelegateFormat(sess.format))...)
	if err != nil {
		t.Fatal(err)
	}
	dev.SetDelegate(sess.delegate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.run(ctx) }()

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for dev.Stats().Callbacks < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sess.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sess.level() <= 0 {
		t.Error("expected a recorded peak from the fake input")
	}

	src, err := decode.Open(out, false)
	if err != nil {
		t.Fatalf("reopen recording: %v", err)
	}
	defer src.Close()
	if src.Format().Channels != 2 || src.Format().SampleRate != 48000 {
		t.Errorf("unexpected recording format %v", src.Format())
	}
	buf := make([]float32, 4800)
	if n, _ := decode.ReadFull(src, buf); n == 0 {
		t.Error("recording is empty")
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	cfg := testSettings(t, "record", filepath.Join(t.TempDir(), "out.wav"))
	cfg.Backend = "nope"
	logs, err := newLoggers(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer logs.Close()
	if _, _, _, err := openBackend(cfg, logs.logger("BKND")); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestToneSession(t *testing.T) {
	cfg := testSettings(t, "-gain", "0.2", "tone")
	logs, err := newLoggers(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer logs.Close()

	var changes []device.ChangeKind
	sess, err := newSession(cfg, fakeDeviceID, nil, nil, logs, func(k device.ChangeKind) {
		changes = append(changes, k)
	})
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	if sess.run != nil || sess.format.Valid() {
		t.Error("tone follows the device format and needs no worker")
	}
	if sess.level() != float32(0.2) {
		t.Errorf("unexpected level %v", sess.level())
	}
	sess.tone.SetGain(0.5)
	if sess.level() != 0.5 {
		t.Errorf("expected gain change to show in level, got %v", sess.level())
	}

	sess.delegate.StatusChanged(device.ChangeName)
	if len(changes) != 1 || changes[0] != device.ChangeName {
		t.Errorf("expected forwarded change, got %v", changes)
	}

	buf, err := sess.delegate.PullSamples(16, audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil || len(buf.Samples) != 32 {
		t.Errorf("unexpected pull %d %v", len(buf.Samples), err)
	}
}

func TestCheckRunning(t *testing.T) {
	b := fake.New()
	b.Add("spk", fake.Speakers())
	dev, err := device.New("spk", b)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := checkRunning(ctx, dev); err != nil {
		t.Fatalf("expected no error on a running device, got %v", err)
	}

	b.Halt("spk")
	if err := checkRunning(ctx, dev); !errors.Is(err, device.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after the backend stopped, got %v", err)
	}

	cancel()
	if err := checkRunning(ctx, dev); err != nil {
		t.Errorf("expected no error once the run is over, got %v", err)
	}
}
