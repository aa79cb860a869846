// Package session holds the samples of one measurement run and the record
// formats they are persisted in.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itohio/gonibp/pkg/nibp"
)

// ErrFinalized is returned by Append once the session has been finalized.
var ErrFinalized = errors.New("session finalized")

// Buffer is the append-only sample store of one measurement session.
//
// A single producer appends; any number of readers take copy-out snapshots.
// Sample index is the append order.
type Buffer struct {
	id        string
	startedAt time.Time

	mu        sync.RWMutex
	samples   []nibp.PressureSample
	finalized bool
}

// NewBuffer creates an empty session with a fresh ID.
func NewBuffer() *Buffer {
	return &Buffer{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		samples:   make([]nibp.PressureSample, 0, 1024),
	}
}

// ID returns the session identifier.
func (b *Buffer) ID() string {
	return b.id
}

// StartedAt returns when the session was created or last cleared.
func (b *Buffer) StartedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startedAt
}

// Append adds a sample at the next index.
func (b *Buffer) Append(s nibp.PressureSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return ErrFinalized
	}
	b.samples = append(b.samples, s)
	return nil
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Snapshot returns a copy of the pressures in mmHg, in append order.
func (b *Buffer) Snapshot() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = s.MmHg
	}
	return out
}

// Samples returns a copy of the full sample records.
func (b *Buffer) Samples() []nibp.PressureSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]nibp.PressureSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Finalize makes the session read-only. It is idempotent.
func (b *Buffer) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = true
}

// Finalized reports whether the session is read-only.
func (b *Buffer) Finalized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.finalized
}

// Clear drops all samples and reopens the session for a new measurement.
// The session keeps its ID.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = b.samples[:0:0]
	b.finalized = false
	b.startedAt = time.Now()
}
