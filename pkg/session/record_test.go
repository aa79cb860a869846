package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gonibp/pkg/nibp"
)

func TestRow(t *testing.T) {
	s := nibp.PressureSample{Timestamp: sample(0).Timestamp, Raw: 3682, MmHg: 118.5}
	assert.Equal(t, []string{"10:15:30", "3682", "118.50"}, Row(s))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	samples := []nibp.PressureSample{sample(0), sample(120.456)}
	samples[1].Raw = 3716

	require.NoError(t, WriteCSV(&buf, samples))
	assert.Equal(t, "Time,RAW,mmHg\n10:15:30,1648,0.00\n10:15:30,3716,120.46\n", buf.String())
}

func TestWriteCSV_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Time,RAW,mmHg\n", buf.String())
}

func TestCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	samples := []nibp.PressureSample{sample(180), sample(150.25), sample(90.5)}
	require.NoError(t, WriteCSV(&buf, samples))

	got, err := ReadPressures(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{180, 150.25, 90.5}, got)
}

func TestReadPressures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []float64
	}{
		{"record file", "Time,RAW,mmHg\n10:00:00,3000,78.75\n10:00:01,3100,84.58\n", []float64{78.75, 84.58}},
		{"column elsewhere", "mmHg,note\n1.5,a\n2,b\n", []float64{1.5, 2}},
		{"padded header", "Time, RAW, mmHg \n10:00:00,1,3.25\n", []float64{3.25}},
		{"header only", "Time,RAW,mmHg\n", nil},
		{"byte order mark", "\ufeffmmHg\n7\n", []float64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPressures(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPressures_MissingColumn(t *testing.T) {
	for _, input := range []string{"", "Time,RAW,pressure\n10:00:00,1,2\n"} {
		_, err := ReadPressures(strings.NewReader(input))
		require.Error(t, err)

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr), "got %v", err)
		assert.Equal(t, "mmHg", schemaErr.Column)
	}
}

func TestReadPressures_BadValue(t *testing.T) {
	_, err := ReadPressures(strings.NewReader("mmHg\n1\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")

	var schemaErr *SchemaError
	assert.False(t, errors.As(err, &schemaErr))
}

func TestReadPressures_ShortRow(t *testing.T) {
	_, err := ReadPressures(strings.NewReader("Time,mmHg\n10:00:00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mmHg")
}

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLogWriter(&buf)

	s := sample(118.5)
	s.Raw = 3682
	require.NoError(t, lw.Write(s))
	require.NoError(t, lw.Note("Systolic: 120.0 mmHg"))
	require.NoError(t, lw.Close())

	assert.Equal(t, "10:15:30 | RAW: 3682 | mmHg: 118.50\nSystolic: 120.0 mmHg\n\n=== Done ===\n", buf.String())
}
