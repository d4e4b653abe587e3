// ABOUTME: Fake stream that invokes the device callback on demand
// ABOUTME: Close waits for the in-flight callback and the clock goroutine
package fake

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/sounddevice/pkg/device"
)

// Stream is an open fake stream
type Stream struct {
	backend *Backend
	id      device.ID
	req     device.StreamRequest
	proc    device.DataProc
	signal  func(frame, ch int) float32

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	stopped   atomic.Bool

	// mu is held for the whole callback so Close can wait it out.
	mu        sync.Mutex
	closed    bool
	out       []float32
	in        []float32
	frame     int
	callbacks int
}

// Request returns what the device asked for
func (s *Stream) Request() device.StreamRequest { return s.req }

// Callbacks returns how many callbacks ran
func (s *Stream) Callbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks
}

// LastOutput returns a copy of the most recent output buffer
func (s *Stream) LastOutput() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.out)
}

// Pump runs one callback of frames frames. It reports false once the stream
// is closed.
func (s *Stream) Pump(frames int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.out = resize(s.out, frames*s.req.OutputChannels)
	s.in = resize(s.in, frames*s.req.InputChannels)
	for i := range s.out {
		s.out[i] = 0
	}
	ch := s.req.InputChannels
	for f := 0; f < frames; f++ {
		for c := 0; c < ch; c++ {
			var v float32
			if s.signal != nil {
				v = s.signal(s.frame+f, c)
			}
			s.in[f*ch+c] = v
		}
	}
	s.frame += frames

	s.proc(s.out, s.in, frames)
	s.callbacks++
	return true
}

func (s *Stream) run(period time.Duration) {
	defer s.wg.Done()

	frames := s.req.PeriodFrames
	if frames <= 0 {
		frames = device.DefaultPeriodFrames
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if !s.Pump(frames) {
				return
			}
		}
	}
}

// halt marks the stream closed without removing it, like hardware that
// stopped on its own.
func (s *Stream) halt() {
	s.closeOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopped.Store(true)
}

// Halt stops only this stream, as if its hardware stream died, and
// publishes ChangeStopped for its device.
func (s *Stream) Halt() {
	s.halt()
	s.backend.hub.Publish(s.id, device.ChangeStopped)
}

// Stopped implements device.StopReporter
func (s *Stream) Stopped() bool { return s.stopped.Load() }

// Close implements device.Stream
func (s *Stream) Close() error {
	s.halt()
	return s.backend.remove(s)
}

func resize(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
