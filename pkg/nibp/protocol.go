package nibp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gonibp/pkg/calib"
)

const (
	// PressureMarker prefixes a live cuff pressure reading.
	PressureMarker = "Tekanan:"
	// ResultMarker marks the board's end-of-measurement summary.
	ResultMarker = "HASIL"
	// Unit follows every pressure value on the wire.
	Unit = "mmHg"
	// StartCommand starts an inflation/deflation cycle.
	StartCommand = "START\n"
)

// ErrMalformed is carried by Unrecognized events whose line had a known
// marker but an unparsable payload.
var ErrMalformed = errors.New("malformed device line")

// Kind identifies what a device line carried.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindPressure
	KindResult
)

func (k Kind) String() string {
	switch k {
	case KindPressure:
		return "pressure"
	case KindResult:
		return "result"
	default:
		return "unrecognized"
	}
}

// PressureSample is a single cuff pressure reading.
type PressureSample struct {
	Timestamp time.Time // Wall clock at parse time, second resolution
	Raw       int       // ADC counts derived from MmHg
	MmHg      float64
}

// Event is one parsed device line.
type Event struct {
	Kind   Kind
	Line   string
	Sample PressureSample // Valid for KindPressure
	Err    error          // Set for malformed KindUnrecognized lines
}

// Reading is the board's own measurement summary from a HASIL line.
type Reading struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
	BPM       float64 `json:"bpm"`
}

// ParseLine classifies one whitespace-trimmed line from the device. It never
// fails: lines that cannot be used come back as KindUnrecognized, with Err
// wrapping ErrMalformed when a marker was present but the payload was not.
func ParseLine(line string, now time.Time) Event {
	switch {
	case strings.Contains(line, PressureMarker):
		mmHg, err := parsePressure(line)
		if err != nil {
			return Event{Kind: KindUnrecognized, Line: line, Err: err}
		}
		return Event{
			Kind: KindPressure,
			Line: line,
			Sample: PressureSample{
				Timestamp: now.Truncate(time.Second),
				Raw:       calib.ToRaw(mmHg),
				MmHg:      mmHg,
			},
		}
	case strings.Contains(line, ResultMarker):
		return Event{Kind: KindResult, Line: line}
	default:
		return Event{Kind: KindUnrecognized, Line: line}
	}
}

// parsePressure extracts the value between the marker and the unit token.
// The unit is optional; serial reads split mid-line sometimes lose it.
func parsePressure(line string) (float64, error) {
	_, payload, _ := strings.Cut(line, PressureMarker)
	if value, _, found := strings.Cut(payload, Unit); found {
		payload = value
	}
	payload = strings.TrimSpace(payload)

	v, err := parseDecimal(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: pressure %q: %v", ErrMalformed, payload, err)
	}
	return v, nil
}

// parseDecimal parses a finite decimal number. The board prints "nan" and
// "inf" for failed sensor reads; those and hex floats are rejected.
func parseDecimal(s string) (float64, error) {
	if strings.ContainsAny(s, "xX") {
		return 0, errors.New("not a decimal number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// ParseResult extracts the systolic, diastolic and BPM fields of a HASIL
// line. Fields are comma separated key=value pairs in that fixed order.
// Example: HASIL Sistolik=120 mmHg, Diastolik=80 mmHg, BPM=72
func ParseResult(line string) (Reading, error) {
	keys := [3]string{"Sistolik", "Diastolik", "BPM"}

	parts := strings.Split(line, ",")
	if len(parts) < len(keys) {
		return Reading{}, fmt.Errorf("%w: expected %d comma-separated fields, got %d", ErrMalformed, len(keys), len(parts))
	}

	var values [3]float64
	for i, key := range keys {
		name, value, found := strings.Cut(parts[i], "=")
		if !found || !strings.HasSuffix(strings.TrimSpace(name), key) {
			return Reading{}, fmt.Errorf("%w: field %d: expected %s=<value>, got %q", ErrMalformed, i, key, strings.TrimSpace(parts[i]))
		}

		value = strings.TrimSpace(strings.ReplaceAll(value, Unit, ""))
		v, err := parseDecimal(value)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: %s %q: %v", ErrMalformed, key, value, err)
		}
		values[i] = v
	}

	return Reading{
		Systolic:  values[0],
		Diastolic: values[1],
		BPM:       values[2],
	}, nil
}
