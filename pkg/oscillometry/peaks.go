package oscillometry

import "sort"

// PeakSet holds peak positions in a smoothed signal together with the signal
// value at each position. Indices are increasing.
type PeakSet struct {
	Indices    []int
	Amplitudes []float64
}

// Len returns the number of peaks.
func (p PeakSet) Len() int {
	return len(p.Indices)
}

// filter keeps the peaks for which keep returns true, preserving order.
func (p PeakSet) filter(keep func(i int) bool) PeakSet {
	out := PeakSet{Indices: []int{}, Amplitudes: []float64{}}
	for i := range p.Indices {
		if keep(i) {
			out.Indices = append(out.Indices, p.Indices[i])
			out.Amplitudes = append(out.Amplitudes, p.Amplitudes[i])
		}
	}
	return out
}

// FindPeaks returns the local maxima of signal that are at least minDistance
// samples apart. A maximum is a sample, or a run of equal samples, strictly
// higher than both neighbours; for a run the middle index is reported (left
// of centre for even runs). The first and last samples are never peaks.
//
// When two maxima are closer than minDistance the higher one wins; maxima are
// visited highest first and each survivor suppresses its close neighbours.
func FindPeaks(signal []float64, minDistance int) PeakSet {
	candidates := localMaxima(signal)
	if minDistance > 1 && len(candidates) > 1 {
		candidates = selectByDistance(signal, candidates, minDistance)
	}

	peaks := PeakSet{
		Indices:    candidates,
		Amplitudes: make([]float64, len(candidates)),
	}
	for i, idx := range candidates {
		peaks.Amplitudes[i] = signal[idx]
	}
	return peaks
}

func localMaxima(x []float64) []int {
	peaks := []int{}
	last := len(x) - 1

	for i := 1; i < last; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}

		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}

		if x[ahead] < x[i] {
			peaks = append(peaks, (i+ahead-1)/2)
			i = ahead
		}
	}

	return peaks
}

func selectByDistance(x []float64, peaks []int, minDistance int) []int {
	n := len(peaks)

	// Visit order: ascending height, ties keep index order, walked from the end.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	for i := n - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < minDistance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < n && peaks[k]-peaks[j] < minDistance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, n)
	for i, idx := range peaks {
		if keep[i] {
			out = append(out, idx)
		}
	}
	return out
}
