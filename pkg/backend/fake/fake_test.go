// ABOUTME: Tests for the fake backend
// ABOUTME: Covers queries, stream pumping, clocked streams and close semantics
package fake

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

func TestQueries(t *testing.T) {
	b := New()
	b.Add("spk", Speakers())

	present, err := b.QueryStatus("spk")
	if err != nil || !present {
		t.Errorf("expected present device, got %v %v", present, err)
	}
	present, err = b.QueryStatus("missing")
	if err != nil || present {
		t.Errorf("expected missing device to be absent, got %v %v", present, err)
	}
	if _, err := b.QueryName("missing"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}

	cfg, err := b.QueryStreamConfig("spk", device.DirectionOutput)
	if err != nil || cfg.Channels != 2 {
		t.Errorf("unexpected output config %v %v", cfg, err)
	}
	cfg, err = b.QueryStreamConfig("spk", device.DirectionInput)
	if err != nil || cfg.Channels != 0 {
		t.Errorf("unexpected input config %v %v", cfg, err)
	}

	queryErr := errors.New("boom")
	b.SetQueryError("spk", queryErr)
	if _, err := b.QueryNativeSampleRates("spk"); !errors.Is(err, queryErr) {
		t.Errorf("expected query error, got %v", err)
	}
}

func TestPumpAndClose(t *testing.T) {
	b := New()
	b.Add("mic", Microphone())
	b.SetInputSignal(func(frame, ch int) float32 { return float32(frame) })

	var got []float32
	s, err := b.Open("mic", device.StreamRequest{SampleRate: 48000, InputChannels: 1}, func(out, in []float32, frames int) {
		if len(out) != 0 {
			t.Errorf("expected no output buffer, got %d", len(out))
		}
		got = append(got, in...)
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	b.Pump("mic", 3)
	b.Pump("mic", 2)
	want := []float32{0, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := b.Pump("mic", 3); n != 0 {
		t.Errorf("closed stream was pumped")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	b := New()
	absent := Speakers()
	absent.Present = false
	b.Add("absent", absent)
	b.Add("spk", Speakers())
	openErr := errors.New("busy")
	b.SetOpenError("spk", openErr)

	noop := func(out, in []float32, frames int) {}
	if _, err := b.Open("missing", device.StreamRequest{}, noop); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
	if _, err := b.Open("absent", device.StreamRequest{}, noop); err == nil {
		t.Error("expected error opening an absent device")
	}
	if _, err := b.Open("spk", device.StreamRequest{}, noop); !errors.Is(err, openErr) {
		t.Errorf("expected open error, got %v", err)
	}
	if b.Opens() != 0 {
		t.Errorf("expected no successful opens, got %d", b.Opens())
	}
}

func TestClockedStream(t *testing.T) {
	b := New(WithClock(200 * time.Microsecond))
	b.Add("spk", Speakers())

	var calls atomic.Int32
	s, err := b.Open("spk", device.StreamRequest{SampleRate: 48000, OutputChannels: 2, PeriodFrames: 64},
		func(out, in []float32, frames int) {
			if frames != 64 || len(out) != 128 {
				t.Errorf("unexpected callback size %d/%d", frames, len(out))
			}
			calls.Add(1)
		})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	after := calls.Load()
	if after < 5 {
		t.Fatalf("expected clocked callbacks, got %d", after)
	}
	time.Sleep(2 * time.Millisecond)
	if calls.Load() != after {
		t.Error("callbacks ran after Close returned")
	}
}

func TestSubscribeAndFire(t *testing.T) {
	b := New()
	b.Add("spk", Speakers())

	var got device.ChangeKind = -1
	sub, err := b.Subscribe("spk", func(k device.ChangeKind) { got = k })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Update("spk", func(d *Device) { d.Name = "New" }, device.ChangeName)
	if got != device.ChangeName {
		t.Errorf("expected name change, got %v", got)
	}
	if name, _ := b.QueryName("spk"); name != "New" {
		t.Errorf("expected updated name, got %q", name)
	}

	sub.Cancel()
	if b.Subscribers("spk") != 0 {
		t.Error("expected subscription to be removed")
	}
}
