// Package monitor runs one live measurement session: it drives the cuff
// controller, collects its pressure samples and hands the finished trace to
// the estimator.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itohio/gonibp/pkg/config"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/session"
)

// End tells how a session stopped.
type End int

const (
	// EndResult means the device printed its summary line.
	EndResult End = iota
	// EndStopped means the caller cancelled the session.
	EndStopped
	// EndClosed means the device stopped sending without a summary.
	EndClosed
)

func (e End) String() string {
	switch e {
	case EndResult:
		return "result"
	case EndStopped:
		return "stopped"
	case EndClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome describes a finished session.
type Outcome struct {
	Session *session.Buffer
	Reading *nibp.Reading // Device-reported summary, nil if none arrived
	End     End
}

// Monitor collects samples from a device into a session buffer.
// Run is the producer; Analyze is the consumer and may be called from any
// goroutine while Run is active.
type Monitor struct {
	cfg *config.Config

	mu  sync.RWMutex
	buf *session.Buffer

	callbacks []func(nibp.PressureSample)
	cbMu      sync.RWMutex
}

// New creates a monitor with an empty session.
func New(cfg *config.Config) *Monitor {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Monitor{
		cfg: cfg,
		buf: session.NewBuffer(),
	}
}

// OnSample registers a callback invoked for every appended sample, in order,
// from the goroutine running Run. Callbacks should return quickly.
func (m *Monitor) OnSample(cb func(s nibp.PressureSample)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Session returns the current session buffer.
func (m *Monitor) Session() *session.Buffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buf
}

// Run performs one measurement on dev. It connects, waits for the board to
// come out of reset, sends START and appends every pressure sample until the
// device reports its result, ctx is cancelled or the device stops sending.
// The device is closed and the session finalized before Run returns.
//
// A transport failure is returned once, together with the samples collected
// before it.
func (m *Monitor) Run(ctx context.Context, dev nibp.Device) (Outcome, error) {
	buf := session.NewBuffer()
	m.mu.Lock()
	m.buf = buf
	m.mu.Unlock()

	out := Outcome{Session: buf, End: EndClosed}
	defer buf.Finalize()

	if err := dev.Connect(); err != nil {
		return out, err
	}
	defer dev.Close()

	log := slog.With("session", buf.ID())
	log.Info("device connected", "startup_delay", m.cfg.Serial.StartupDelay)

	if d := m.cfg.Serial.StartupDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			out.End = EndStopped
			return out, nil
		}
	}

	if err := dev.Start(); err != nil {
		return out, err
	}
	log.Info("measurement started")

	events := dev.Events()
	for {
		select {
		case <-ctx.Done():
			out.End = EndStopped
			log.Info("measurement stopped", "samples", buf.Len())
			return out, nil

		case ev, ok := <-events:
			if !ok {
				err := dev.Err()
				if err != nil {
					log.Error("device failed", "samples", buf.Len(), "err", err)
				} else {
					log.Warn("device stopped without result", "samples", buf.Len())
				}
				return out, err
			}

			switch ev.Kind {
			case nibp.KindPressure:
				if err := buf.Append(ev.Sample); err != nil {
					return out, err
				}
				m.notify(ev.Sample)

			case nibp.KindResult:
				reading, err := nibp.ParseResult(ev.Line)
				if err != nil {
					log.Warn("unreadable result line", "line", ev.Line, "err", err)
				} else {
					out.Reading = &reading
				}
				out.End = EndResult
				log.Info("measurement complete", "samples", buf.Len())
				return out, nil
			}
		}
	}
}

// Analyze estimates blood pressure from a snapshot of the current session.
func (m *Monitor) Analyze() (*oscillometry.Result, error) {
	return Analyze(m.Session().Snapshot(), m.cfg.Analysis)
}

// Analyze estimates blood pressure from a complete trace. Traces shorter than
// cfg.MinSamples are refused before estimation.
func Analyze(samples []float64, cfg config.AnalysisConfig) (*oscillometry.Result, error) {
	method, err := oscillometry.ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}
	if len(samples) < cfg.MinSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", oscillometry.ErrInsufficientData, len(samples), cfg.MinSamples)
	}
	return oscillometry.EstimateWith(method, samples)
}

func (m *Monitor) notify(s nibp.PressureSample) {
	m.cbMu.RLock()
	callbacks := make([]func(nibp.PressureSample), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(s)
		}
	}
}

// Stage names where a session failed.
type Stage string

const (
	StageParse            Stage = "parse"
	StageInsufficientData Stage = "insufficient data"
	StageTransport        Stage = "transport"
	StageSchema           Stage = "schema"
	StageInternal         Stage = "internal"
)

// Status is a failure as shown to the user.
type Status struct {
	Stage   Stage
	Message string
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s", s.Stage, s.Message)
}

// Describe classifies err for display. It never panics on nil and returns a
// zero Status for it.
func Describe(err error) Status {
	if err == nil {
		return Status{}
	}

	var transportErr *nibp.TransportError
	var schemaErr *session.SchemaError
	stage := StageInternal
	switch {
	case errors.As(err, &transportErr):
		stage = StageTransport
	case errors.As(err, &schemaErr):
		stage = StageSchema
	case errors.Is(err, oscillometry.ErrInsufficientData):
		stage = StageInsufficientData
	case errors.Is(err, nibp.ErrMalformed):
		stage = StageParse
	}

	return Status{Stage: stage, Message: err.Error()}
}
