package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gonibp/pkg/nibp"
)

func sample(mmHg float64) nibp.PressureSample {
	return nibp.PressureSample{Timestamp: time.Date(2025, 3, 1, 10, 15, 30, 0, time.Local), Raw: 1648, MmHg: mmHg}
}

func TestNewBuffer(t *testing.T) {
	b := NewBuffer()
	require.NotNil(t, b)
	assert.NotEmpty(t, b.ID())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())
	assert.False(t, b.Finalized())
	assert.WithinDuration(t, time.Now(), b.StartedAt(), time.Second)

	assert.NotEqual(t, b.ID(), NewBuffer().ID())
}

func TestBuffer_AppendOrder(t *testing.T) {
	b := NewBuffer()
	for _, v := range []float64{10, 20, 15} {
		require.NoError(t, b.Append(sample(v)))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []float64{10, 20, 15}, b.Snapshot())

	samples := b.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, 20.0, samples[1].MmHg)
}

func TestBuffer_SnapshotIsCopy(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.Append(sample(1)))

	snap := b.Snapshot()
	snap[0] = 99
	samples := b.Samples()
	samples[0].MmHg = 99

	assert.Equal(t, []float64{1}, b.Snapshot())

	require.NoError(t, b.Append(sample(2)))
	assert.Len(t, snap, 1, "earlier snapshot must not grow")
}

func TestBuffer_Finalize(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.Append(sample(1)))

	b.Finalize()
	b.Finalize()
	assert.True(t, b.Finalized())
	assert.ErrorIs(t, b.Append(sample(2)), ErrFinalized)
	assert.Equal(t, 1, b.Len())
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer()
	id := b.ID()
	require.NoError(t, b.Append(sample(1)))
	snap := b.Snapshot()
	b.Finalize()

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Finalized())
	assert.Equal(t, id, b.ID())
	assert.Equal(t, []float64{1}, snap)

	require.NoError(t, b.Append(sample(5)))
	assert.Equal(t, []float64{5}, b.Snapshot())
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b := NewBuffer()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			_ = b.Append(sample(float64(i)))
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				snap := b.Snapshot()
				for i, v := range snap {
					if v != float64(i) {
						t.Errorf("snapshot[%d] = %v", i, v)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, n, b.Len())
}
