package oscillometry

import (
	"fmt"
	"slices"
)

const (
	// SystolicRatio is the oscillation amplitude, relative to the MAP beat,
	// at which systolic pressure is read on the high-pressure side.
	SystolicRatio = 0.55
	// DiastolicRatio is the same for diastolic pressure on the low-pressure side.
	DiastolicRatio = 0.85

	minRatioPeaks = 3
)

// EstimateRatio derives the pressures with the amplitude-ratio method.
//
// Each peak's oscillation amplitude is its height above the lowest smoothed
// value in the beat that follows it. MAP is the pressure at the largest oscillation.
// Systolic is the pressure at the nearest earlier peak whose oscillation has
// fallen to SystolicRatio of the maximum, diastolic the nearest later peak at
// DiastolicRatio. Valid peaks are those oscillating above ValidRatio of the
// maximum.
func EstimateRatio(samples []float64) (*Result, error) {
	apex, smoothed, peaks, err := prepare(samples)
	if err != nil {
		return nil, err
	}
	if peaks.Len() < minRatioPeaks {
		return nil, fmt.Errorf("%w: %d peaks, need at least %d", ErrInsufficientData, peaks.Len(), minRatioPeaks)
	}

	osc := oscillations(smoothed, peaks.Indices)
	top := argmax(osc)
	maxOsc := osc[top]
	if maxOsc <= 0 {
		return nil, fmt.Errorf("%w: no oscillation above baseline", ErrInsufficientData)
	}

	sys := -1
	for k := top - 1; k >= 0; k-- {
		if osc[k] <= SystolicRatio*maxOsc {
			sys = k
			break
		}
	}
	if sys < 0 {
		return nil, fmt.Errorf("%w: oscillation never falls to %.2f of maximum before MAP", ErrInsufficientData, SystolicRatio)
	}

	dia := -1
	for k := top + 1; k < len(osc); k++ {
		if osc[k] <= DiastolicRatio*maxOsc {
			dia = k
			break
		}
	}
	if dia < 0 {
		return nil, fmt.Errorf("%w: oscillation never falls to %.2f of maximum after MAP", ErrInsufficientData, DiastolicRatio)
	}

	valid := peaks.filter(func(i int) bool {
		return osc[i] > ValidRatio*maxOsc
	})

	return &Result{
		Method:       MethodRatio,
		ApexIndex:    apex,
		MAP:          smoothed[peaks.Indices[top]],
		Systolic:     smoothed[peaks.Indices[sys]],
		Diastolic:    smoothed[peaks.Indices[dia]],
		Smoothed:     smoothed,
		Peaks:        peaks,
		ValidPeaks:   valid,
		Oscillations: osc,
	}, nil
}

// oscillations returns, for each peak, its height above the minimum of the
// signal that follows it, up to the next peak but no further than one typical
// beat. The cap keeps the deflation ramp from inflating the amplitude of
// peaks followed by a long quiet stretch.
func oscillations(signal []float64, peaks []int) []float64 {
	beat := medianGap(peaks)
	if beat == 0 {
		beat = len(signal)
	}

	out := make([]float64, len(peaks))
	for k, p := range peaks {
		end := len(signal)
		if k+1 < len(peaks) {
			end = peaks[k+1]
		}
		end = min(end, p+beat)

		low := signal[p]
		for _, v := range signal[p:end] {
			low = min(low, v)
		}
		out[k] = signal[p] - low
	}
	return out
}

// medianGap returns the median spacing between consecutive peaks (upper
// median for an even count), or 0 for fewer than two peaks.
func medianGap(peaks []int) int {
	if len(peaks) < 2 {
		return 0
	}
	gaps := make([]int, len(peaks)-1)
	for i := range gaps {
		gaps[i] = peaks[i+1] - peaks[i]
	}
	slices.Sort(gaps)
	return gaps[len(gaps)/2]
}
