// Package calib converts between raw pressure-sensor ADC counts and mmHg.
//
// The transform is linear and specific to the cuff board's sensor front end.
// Every conversion in the module goes through this package so that a gain or
// offset recalibration only touches the constants below.
package calib

import "math"

const (
	// Gain is the pressure represented by one ADC count (mmHg/count).
	Gain = 0.05825
	// Offset is the ADC reading at zero gauge pressure (counts).
	Offset = 1648
)

// ToRaw converts a pressure in mmHg to the nearest ADC count.
func ToRaw(mmHg float64) int {
	return int(math.Round(mmHg/Gain + Offset))
}

// ToMmHg converts an ADC count back to mmHg.
func ToMmHg(raw int) float64 {
	return float64(raw-Offset) * Gain
}
