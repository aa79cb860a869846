package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gonibp/pkg/calib"
	"github.com/itohio/gonibp/pkg/monitor"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/session"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "data", "nibp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func filledBuffer(t *testing.T, values ...float64) *session.Buffer {
	t.Helper()
	buf := session.NewBuffer()
	now := time.Now().Truncate(time.Second)
	for i, v := range values {
		require.NoError(t, buf.Append(nibp.PressureSample{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Raw:       calib.ToRaw(v),
			MmHg:      v,
		}))
	}
	buf.Finalize()
	return buf
}

func TestOpen_CreatesDirAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "nibp.db")

	a, err := Open(path)
	require.NoError(t, err)
	buf := filledBuffer(t, 1, 2)
	require.NoError(t, a.SaveSession(context.Background(), buf, nil))
	require.NoError(t, a.Close())

	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.Pressures(context.Background(), buf.ID())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)
}

func TestSaveSession_Pressures(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	buf := filledBuffer(t, 180, 150.25, 120.5, 90)
	reading := &nibp.Reading{Systolic: 120, Diastolic: 80, BPM: 72}
	require.NoError(t, a.SaveSession(ctx, buf, reading))

	got, err := a.Pressures(ctx, buf.ID())
	require.NoError(t, err)
	assert.Equal(t, buf.Snapshot(), got)

	sessions, err := a.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, buf.ID(), sessions[0].ID)
	assert.Equal(t, 4, sessions[0].Samples)
	assert.True(t, buf.StartedAt().Equal(sessions[0].StartedAt))
	require.NotNil(t, sessions[0].Reading)
	assert.Equal(t, *reading, *sessions[0].Reading)
}

func TestSaveSession_Replaces(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	buf := filledBuffer(t, 1, 2, 3)
	require.NoError(t, a.SaveSession(ctx, buf, nil))

	buf.Clear()
	require.NoError(t, buf.Append(nibp.PressureSample{Timestamp: time.Now(), MmHg: 9}))
	require.NoError(t, a.SaveSession(ctx, buf, nil))

	got, err := a.Pressures(ctx, buf.ID())
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, got)

	sessions, err := a.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].Samples)
	assert.Nil(t, sessions[0].Reading)
}

func TestSaveSession_Empty(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	buf := session.NewBuffer()
	require.NoError(t, a.SaveSession(ctx, buf, nil))

	got, err := a.Pressures(ctx, buf.ID())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPressures_NotFound(t *testing.T) {
	_, err := openTemp(t).Pressures(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	buf := filledBuffer(t, 1, 2, 3)
	require.NoError(t, a.SaveSession(ctx, buf, nil))

	res := &oscillometry.Result{Method: oscillometry.MethodOrdinal, MAP: 95.5, Systolic: 121.25, Diastolic: 79.75}
	require.NoError(t, a.SaveResult(ctx, buf.ID(), res))

	status := monitor.Status{Stage: monitor.StageInsufficientData, Message: "insufficient data: 18 valid peaks, need at least 20"}
	require.NoError(t, a.SaveFailure(ctx, buf.ID(), status))

	records, err := a.Results(ctx, buf.ID())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.False(t, records[0].Failed())
	assert.Equal(t, oscillometry.MethodOrdinal, records[0].Method)
	assert.Equal(t, 95.5, records[0].MAP)
	assert.Equal(t, 121.25, records[0].Systolic)
	assert.Equal(t, 79.75, records[0].Diastolic)
	assert.WithinDuration(t, time.Now(), records[0].CreatedAt, time.Minute)

	assert.True(t, records[1].Failed())
	assert.Equal(t, status.Stage, records[1].Stage)
	assert.Equal(t, status.Message, records[1].Message)
	assert.Zero(t, records[1].Systolic)

	none, err := a.Results(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveResult_UnknownSession(t *testing.T) {
	res := &oscillometry.Result{Method: oscillometry.MethodRatio}
	assert.Error(t, openTemp(t).SaveResult(context.Background(), "missing", res))
}

func TestSessions_NewestFirst(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	older := filledBuffer(t, 1)
	time.Sleep(5 * time.Millisecond)
	newer := filledBuffer(t, 2)

	require.NoError(t, a.SaveSession(ctx, older, nil))
	require.NoError(t, a.SaveSession(ctx, newer, nil))

	sessions, err := a.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID(), sessions[0].ID)
	assert.Equal(t, older.ID(), sessions[1].ID)
}
