// ABOUTME: Float32 ring buffer between a real-time thread and a worker
// ABOUTME: TryRead and TryWrite give up instead of waiting on the lock
package source

import "sync"

// Ring is a fixed capacity circular buffer of samples
type Ring struct {
	mu       sync.Mutex
	buffer   []float32
	readPos  int
	writePos int
	count    int // Number of samples currently in buffer
}

// NewRing creates a ring buffer with given capacity (in samples)
func NewRing(capacity int) *Ring {
	return &Ring{buffer: make([]float32, capacity)}
}

// Write adds as many samples as fit and returns how many were written
func (r *Ring) Write(samples []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(samples)
}

// TryWrite is Write unless the lock is held, in which case it writes nothing
// and reports false.
func (r *Ring) TryWrite(samples []float32) (int, bool) {
	if !r.mu.TryLock() {
		return 0, false
	}
	defer r.mu.Unlock()
	return r.write(samples), true
}

func (r *Ring) write(samples []float32) int {
	n := min(len(samples), len(r.buffer)-r.count)
	for i := 0; i < n; i++ {
		r.buffer[r.writePos] = samples[i]
		r.writePos = (r.writePos + 1) % len(r.buffer)
	}
	r.count += n
	return n
}

// Read retrieves up to len(samples) samples and zero fills the rest. It
// returns how many were real.
func (r *Ring) Read(samples []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(samples)
}

// TryRead is Read unless the lock is held, in which case samples is zero
// filled and it reports false.
func (r *Ring) TryRead(samples []float32) (int, bool) {
	if !r.mu.TryLock() {
		clear(samples)
		return 0, false
	}
	defer r.mu.Unlock()
	return r.read(samples), true
}

func (r *Ring) read(samples []float32) int {
	n := min(len(samples), r.count)
	for i := 0; i < n; i++ {
		samples[i] = r.buffer[r.readPos]
		r.readPos = (r.readPos + 1) % len(r.buffer)
	}
	r.count -= n

	// Zero-fill remaining if underrun
	clear(samples[n:])
	return n
}

// Available returns the number of samples available to read
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Free returns the number of free slots in the buffer
func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer) - r.count
}

// Reset discards buffered samples
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readPos, r.writePos, r.count = 0, 0, 0
}
