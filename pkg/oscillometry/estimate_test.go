package oscillometry

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deflationRamp builds a linear cuff deflation from 180 to 40 mmHg with a
// decaying 20-sample pulse superimposed.
func deflationRamp(n int, amplitude, decay float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		ramp := 180 - 140*float64(i)/float64(n-1)
		out[i] = ramp + amplitude*math.Exp(-float64(i)/decay)*math.Sin(2*math.Pi*float64(i)/20)
	}
	return out
}

// spikeTrain starts at the apex and then emits one isolated spike every ten
// samples. After smoothing each spike becomes a five-sample plateau of
// height/5 whose middle is reported as the peak.
func spikeTrain(heights ...float64) []float64 {
	out := []float64{1000}
	for _, h := range heights {
		out = append(out, 0, 0, 0, 0, 0, h, 0, 0, 0, 0)
	}
	return append(out, 0, 0, 0, 0, 0)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEstimate_DeflationRamp(t *testing.T) {
	samples := deflationRamp(1000, 8, 2000)

	res, err := Estimate(samples)
	require.NoError(t, err)

	assert.Equal(t, MethodOrdinal, res.Method)
	assert.Equal(t, 5, res.ApexIndex)
	assert.Len(t, res.Smoothed, len(samples)-res.ApexIndex-Window+1)

	// MAP is the highest peak, and lies within the recorded trace.
	assert.Equal(t, slices.Max(res.Peaks.Amplitudes), res.MAP)
	assert.GreaterOrEqual(t, res.MAP, slices.Min(samples))
	assert.LessOrEqual(t, res.MAP, slices.Max(samples))

	// Earlier peaks sit at higher cuff pressure.
	assert.LessOrEqual(t, res.Systolic, res.MAP)
	assert.Greater(t, res.Systolic, res.Diastolic)

	require.GreaterOrEqual(t, res.ValidPeaks.Len(), MinValidPeaks)
	assert.Equal(t, res.Smoothed[res.ValidPeaks.Indices[1]], res.Systolic)
	assert.Equal(t, res.Smoothed[res.ValidPeaks.Indices[res.ValidPeaks.Len()-19]], res.Diastolic)

	for i := 1; i < res.Peaks.Len(); i++ {
		assert.GreaterOrEqual(t, res.Peaks.Indices[i]-res.Peaks.Indices[i-1], MinPeakDistance)
	}
	assert.InDelta(t, 183.64, res.MAP, 0.01)
	assert.InDelta(t, 180.77, res.Systolic, 0.01)
	assert.InDelta(t, 109.13, res.Diastolic, 0.01)
}

func TestEstimate_ValidPeaksAreOrderedSubset(t *testing.T) {
	heights := make([]float64, 0, 50)
	for i := 0; i < 25; i++ {
		heights = append(heights, 100, 5)
	}

	res, err := Estimate(spikeTrain(heights...))
	require.NoError(t, err)

	assert.Equal(t, 50, res.Peaks.Len())
	require.Equal(t, 25, res.ValidPeaks.Len())
	for i, idx := range res.ValidPeaks.Indices {
		assert.Equal(t, 4+20*i, idx)
		assert.Contains(t, res.Peaks.Indices, idx)
		assert.Greater(t, res.ValidPeaks.Amplitudes[i], ValidRatio*res.MAP)
	}
	assert.Equal(t, 20.0, res.MAP)
}

func TestEstimate_OrdinalSelection(t *testing.T) {
	heights := make([]float64, 25)
	for i := range heights {
		heights[i] = 100 + float64(i)
	}

	res, err := Estimate(spikeTrain(heights...))
	require.NoError(t, err)

	assert.InDelta(t, 124.0/5, res.MAP, 1e-9)
	assert.InDelta(t, 101.0/5, res.Systolic, 1e-9)  // second valid peak
	assert.InDelta(t, 106.0/5, res.Diastolic, 1e-9) // 25 - 19 = sixth valid peak
}

func TestEstimate_ExactlyTwentyValidPeaks(t *testing.T) {
	res, err := Estimate(spikeTrain(repeat(100, 20)...))
	require.NoError(t, err)

	// valid[1] and valid[len-19] are the same peak.
	require.Equal(t, MinValidPeaks, res.ValidPeaks.Len())
	assert.Equal(t, res.Systolic, res.Diastolic)
}

func TestEstimate_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		reason  string
	}{
		{
			name:    "empty",
			samples: nil,
			reason:  "to smooth",
		},
		{
			name:    "apex too close to the end",
			samples: []float64{10, 20, 200, 190, 180, 170},
			reason:  "to smooth",
		},
		{
			name:    "no oscillation",
			samples: []float64{200, 190, 180, 170, 160, 150, 140, 130, 120},
			reason:  "no oscillation peaks",
		},
		{
			name:    "nineteen valid peaks",
			samples: spikeTrain(repeat(100, 19)...),
			reason:  "19 valid peaks",
		},
		{
			name:    "short deflation trace",
			samples: deflationRamp(400, 10, 400),
			reason:  "18 valid peaks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Estimate(tt.samples)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientData))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestEstimate_NeverIndexesPastValidPeaks(t *testing.T) {
	for n := 0; n <= 30; n++ {
		assert.NotPanics(t, func() {
			res, err := Estimate(spikeTrain(repeat(100, n)...))
			if n < MinValidPeaks {
				assert.ErrorIs(t, err, ErrInsufficientData)
			} else {
				require.NoError(t, err)
				assert.Equal(t, n, res.ValidPeaks.Len())
			}
		})
	}
}

func TestEstimate_DoesNotModifyInput(t *testing.T) {
	samples := deflationRamp(1000, 8, 2000)
	orig := slices.Clone(samples)

	_, err := Estimate(samples)
	require.NoError(t, err)
	assert.Equal(t, orig, samples)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{in: "ordinal", want: MethodOrdinal},
		{in: "", want: MethodOrdinal},
		{in: " Ratio ", want: MethodRatio},
		{in: "slope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateWith(t *testing.T) {
	samples := deflationRamp(1000, 8, 2000)

	res, err := EstimateWith(MethodOrdinal, samples)
	require.NoError(t, err)
	assert.Equal(t, MethodOrdinal, res.Method)

	_, err = EstimateWith(Method("slope"), samples)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientData))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "118.3 mmHg", FormatMmHg(118.26))
	assert.Equal(t, "80.0 mmHg", FormatMmHg(80))

	res := &Result{MAP: 93.349, Systolic: 120.04, Diastolic: 79.94}
	assert.Equal(t, "Systolic: 120.0 mmHg, Diastolic: 79.9 mmHg, MAP: 93.3 mmHg", res.String())
}
