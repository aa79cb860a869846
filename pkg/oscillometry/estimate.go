package oscillometry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Window is the moving-average length in samples.
	Window = 5
	// MinPeakDistance is the shortest allowed gap between two oscillation peaks.
	MinPeakDistance = 5
	// ValidRatio is the fraction of the largest peak a peak must exceed to count as valid.
	ValidRatio = 0.3
	// MinValidPeaks is the number of valid peaks the ordinal method needs.
	MinValidPeaks = 20

	systolicOrdinal  = 1  // second valid peak
	diastolicFromEnd = 19 // nineteenth valid peak from the end
)

// ErrInsufficientData is returned when the trace cannot produce an estimate.
// Callers branch on it with errors.Is and keep accumulating or give up.
var ErrInsufficientData = errors.New("insufficient data")

// Method selects how systolic and diastolic pressures are picked.
type Method string

const (
	// MethodOrdinal picks peaks by fixed position in the valid peak list.
	MethodOrdinal Method = "ordinal"
	// MethodRatio picks peaks by oscillation amplitude relative to MAP.
	MethodRatio Method = "ratio"
)

// ParseMethod maps a configuration string to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodOrdinal, "":
		return MethodOrdinal, nil
	case MethodRatio:
		return MethodRatio, nil
	default:
		return "", fmt.Errorf("unknown estimation method %q", s)
	}
}

// Result is one completed estimation. Pressures are in mmHg; peak indices
// refer to Smoothed.
type Result struct {
	Method     Method
	ApexIndex  int
	MAP        float64
	Systolic   float64
	Diastolic  float64
	Smoothed   []float64
	Peaks      PeakSet
	ValidPeaks PeakSet

	// Oscillations holds the per-peak oscillation amplitude for MethodRatio.
	Oscillations []float64
}

// String formats the three pressures for display.
func (r *Result) String() string {
	return fmt.Sprintf("Systolic: %s, Diastolic: %s, MAP: %s",
		FormatMmHg(r.Systolic), FormatMmHg(r.Diastolic), FormatMmHg(r.MAP))
}

// FormatMmHg formats a pressure with one decimal place, e.g. "118.3 mmHg".
func FormatMmHg(v float64) string {
	return fmt.Sprintf("%.1f mmHg", v)
}

// EstimateWith runs the estimator selected by method.
func EstimateWith(method Method, samples []float64) (*Result, error) {
	switch method {
	case MethodRatio:
		return EstimateRatio(samples)
	case MethodOrdinal, "":
		return Estimate(samples)
	default:
		return nil, fmt.Errorf("unknown estimation method %q", method)
	}
}

// prepare runs the steps shared by both methods: apex extraction, smoothing
// and peak detection.
func prepare(samples []float64) (int, []float64, PeakSet, error) {
	apex, segment := Extract(samples)

	if len(segment) < Window {
		return 0, nil, PeakSet{}, fmt.Errorf("%w: %d deflation samples, need at least %d to smooth", ErrInsufficientData, len(segment), Window)
	}
	smoothed := Smooth(segment, Window)

	peaks := FindPeaks(smoothed, MinPeakDistance)
	if peaks.Len() == 0 {
		return 0, nil, PeakSet{}, fmt.Errorf("%w: no oscillation peaks", ErrInsufficientData)
	}

	return apex, smoothed, peaks, nil
}

// Estimate derives MAP, systolic and diastolic pressure with the ordinal
// method. MAP is the smoothed pressure at the highest peak. Peaks above
// ValidRatio of that height are valid; systolic is the second valid peak and
// diastolic the nineteenth from the end, so at least MinValidPeaks are needed.
func Estimate(samples []float64) (*Result, error) {
	apex, smoothed, peaks, err := prepare(samples)
	if err != nil {
		return nil, err
	}

	top := argmax(peaks.Amplitudes)
	mapValue := smoothed[peaks.Indices[top]]

	threshold := ValidRatio * peaks.Amplitudes[top]
	valid := peaks.filter(func(i int) bool {
		return peaks.Amplitudes[i] > threshold
	})

	if valid.Len() < MinValidPeaks {
		return nil, fmt.Errorf("%w: %d valid peaks, need at least %d", ErrInsufficientData, valid.Len(), MinValidPeaks)
	}

	return &Result{
		Method:     MethodOrdinal,
		ApexIndex:  apex,
		MAP:        mapValue,
		Systolic:   smoothed[valid.Indices[systolicOrdinal]],
		Diastolic:  smoothed[valid.Indices[valid.Len()-diastolicFromEnd]],
		Smoothed:   smoothed,
		Peaks:      peaks,
		ValidPeaks: valid,
	}, nil
}

// argmax returns the index of the first maximum of values.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
