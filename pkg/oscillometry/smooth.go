package oscillometry

// Smooth returns the moving average of segment over window samples without
// padding. Output index i is the mean of segment[i:i+window], so the result
// has len(segment)-window+1 values, or none when the segment is too short.
func Smooth(segment []float64, window int) []float64 {
	if window <= 0 || len(segment) < window {
		return []float64{}
	}

	out := make([]float64, len(segment)-window+1)
	for i := range out {
		var sum float64
		for _, v := range segment[i : i+window] {
			sum += v
		}
		out[i] = sum / float64(window)
	}

	return out
}
