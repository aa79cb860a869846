package session

// Downsample decimates values to at most maxPoints for display.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// If len(values) <= maxPoints, all values are copied.
func Downsample(dst []float64, values []float64, maxPoints int) []float64 {
	if maxPoints <= 0 {
		return dst[:0]
	}

	n := min(len(values), maxPoints)
	if cap(dst) >= n {
		dst = dst[:0]
	} else {
		dst = make([]float64, 0, n)
	}

	if len(values) <= maxPoints {
		return append(dst, values...)
	}

	step := float64(len(values)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, values[int(float64(i)*step)])
	}

	return dst
}
