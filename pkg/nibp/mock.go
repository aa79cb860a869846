package nibp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/itohio/gonibp/pkg/config"
)

// Mock simulates the cuff controller for testing and development. It writes
// the same text protocol the board prints and parses it with Scan, so the
// whole input path is exercised.
type Mock struct {
	cfg *config.MockConfig

	events    chan Event
	done      chan struct{}
	started   chan struct{}
	startOnce sync.Once
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	err       error

	pr *io.PipeReader
	pw *io.PipeWriter
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     cfg,
		events:  make(chan Event, DefaultBufferSize),
		done:    make(chan struct{}),
		started: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect simulates opening the port.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	m.pr, m.pw = io.Pipe()
	m.connected = true

	go m.readEvents()
	go m.generateLines()

	return nil
}

// Start begins the simulated inflation/deflation cycle.
func (m *Mock) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	m.startOnce.Do(func() { close(m.started) })
	return nil
}

// Events returns the channel of parsed device events.
func (m *Mock) Events() <-chan Event {
	return m.events
}

// Err returns the transport failure that ended reading, if any.
func (m *Mock) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Close stops the mocked device and waits for its reader to exit.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}

	m.cancel()
	m.pw.Close()
	m.pr.Close()
	m.connected = false
	m.mu.Unlock()

	<-m.done

	return nil
}

func (m *Mock) readEvents() {
	defer close(m.done)
	defer close(m.events)

	if err := Scan(m.ctx, m.pr, m.events); err != nil {
		slog.Error("mock read failed", "err", err)
		m.mu.Lock()
		m.err = err
		m.mu.Unlock()
	}
}

// generateLines writes one protocol line per tick once started, followed by
// the HASIL summary.
func (m *Mock) generateLines() {
	defer m.pw.Close()

	select {
	case <-m.started:
	case <-m.ctx.Done():
		return
	}

	if _, err := io.WriteString(m.pw, "NIBP ready\r\n"); err != nil {
		return
	}

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for i, p := range MockWaveform(m.cfg) {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		if m.cfg.NoiseLines > 0 && i > 0 && i%m.cfg.NoiseLines == 0 {
			if _, err := io.WriteString(m.pw, noiseLine(i)); err != nil {
				return
			}
		}
		if _, err := fmt.Fprintf(m.pw, "%s %.2f %s\r\n", PressureMarker, p, Unit); err != nil {
			return
		}
	}

	fmt.Fprintf(m.pw, "%s Sistolik=%g %s, Diastolik=%g %s, BPM=%g\r\n",
		ResultMarker, m.cfg.Systolic, Unit, m.cfg.Diastolic, Unit, m.cfg.BPM)
}

// noiseLine alternates between a boot banner fragment and a torn pressure line.
func noiseLine(i int) string {
	if i%2 == 0 {
		return "Pompa ON\r\n"
	}
	return PressureMarker + " -- " + Unit + "\r\n"
}

// MockWaveform returns the cuff pressure trace the mock prints: a linear
// inflation to PeakPressure, then a linear deflation to EndPressure with a
// sinusoidal pulse whose envelope peaks a little before mid-deflation.
func MockWaveform(cfg *config.MockConfig) []float64 {
	out := make([]float64, 0, cfg.InflationSamples+cfg.DeflationSamples)

	for i := 0; i < cfg.InflationSamples; i++ {
		out = append(out, cfg.PeakPressure*float64(i+1)/float64(cfg.InflationSamples))
	}

	n := cfg.DeflationSamples
	if n < 2 {
		return append(out, cfg.PeakPressure)
	}

	center := 0.45 * float64(n)
	width := 0.2 * float64(n)
	for j := 0; j < n; j++ {
		base := cfg.PeakPressure - (cfg.PeakPressure-cfg.EndPressure)*float64(j)/float64(n-1)
		d := (float64(j) - center) / width
		envelope := cfg.OscillationAmplitude * (0.3 + 0.7*math.Exp(-d*d))
		out = append(out, base+envelope*math.Sin(2*math.Pi*float64(j)/float64(cfg.OscillationPeriod)))
	}

	return out
}
