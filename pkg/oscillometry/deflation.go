package oscillometry

// Extract returns the index of the inflation apex (the first occurrence of
// the maximum pressure) and the deflation segment that starts there.
// The segment shares storage with samples. Empty input yields (0, nil).
func Extract(samples []float64) (int, []float64) {
	if len(samples) == 0 {
		return 0, nil
	}

	apex := 0
	for i, v := range samples {
		if v > samples[apex] {
			apex = i
		}
	}

	return apex, samples[apex:]
}
