package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itohio/gonibp/pkg/archive"
	"github.com/itohio/gonibp/pkg/config"
	"github.com/itohio/gonibp/pkg/monitor"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/publish"
	"github.com/itohio/gonibp/pkg/session"
)

func newMeasureCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Run a live measurement and analyse it",
		Long: `Connects to the cuff controller, starts a measurement and records every
pressure sample until the controller reports its result. Press Ctrl+C to stop
early. The trace is written to the output directory and analysed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return measure(ctx, cfg, newDevice(cfg, opts.mock), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use mocked device instead of serial port")
	return cmd
}

func newDevice(cfg *config.Config, mock bool) nibp.Device {
	if mock {
		return nibp.NewMock(&cfg.Mock)
	}
	return nibp.New(cfg.Serial.Port, cfg.Serial.BaudRate, nibp.DefaultBufferSize)
}

func measure(ctx context.Context, cfg *config.Config, dev nibp.Device, w io.Writer) error {
	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	m := monitor.New(cfg)
	rec, err := session.NewRecorder(cfg.Output.Dir, time.Now())
	if err != nil {
		return err
	}
	m.OnSample(rec.Record)

	_, _ = fmt.Fprintf(w, "Measuring... File: %s\n", rec.CSVPath)
	out, runErr := m.Run(ctx, dev)

	if out.Reading != nil {
		rec.Note(fmt.Sprintf("Device: Systolic %g mmHg, Diastolic %g mmHg, BPM %g", out.Reading.Systolic, out.Reading.Diastolic, out.Reading.BPM))
	}

	res, err := m.Analyze()
	if runErr != nil {
		err = runErr
	}
	if err != nil {
		rec.Note(monitor.Describe(err).String())
	} else {
		rec.Note(res.String())
	}
	if cerr := rec.Close(); cerr != nil {
		slog.Error("writing session files failed", "err", cerr)
	}

	_, _ = fmt.Fprintf(w, "Session %s: %d samples (%s)\n", out.Session.ID(), out.Session.Len(), out.End)
	if out.Reading != nil {
		_, _ = fmt.Fprintf(w, "Device: Systolic %g mmHg, Diastolic %g mmHg, BPM %g\n", out.Reading.Systolic, out.Reading.Diastolic, out.Reading.BPM)
	}

	if out.Session.Len() > 0 {
		if serr := sinks.saveSession(ctx, out); serr != nil {
			slog.Error("archiving session failed", "session", out.Session.ID(), "err", serr)
		}
		sinks.report(ctx, out.Session.ID(), out.Session.Snapshot(), res, err, out.Reading)
	}

	return printOutcome(w, res, err)
}

func printOutcome(w io.Writer, res *oscillometry.Result, err error) error {
	if err != nil {
		st := monitor.Describe(err)
		_, _ = fmt.Fprintf(w, "Analysis failed (%s): %s\n", st.Stage, st.Message)
		return err
	}
	_, _ = fmt.Fprintf(w, "Systolic: %s\nDiastolic: %s\nMAP: %s\n",
		oscillometry.FormatMmHg(res.Systolic), oscillometry.FormatMmHg(res.Diastolic), oscillometry.FormatMmHg(res.MAP))
	return nil
}

// sinks are the optional destinations of a finished analysis.
type sinks struct {
	archive *archive.Archive
	pub     publish.Publisher
}

func openSinks(cfg *config.Config) (*sinks, error) {
	s := &sinks{}

	if cfg.Archive.Path != "" {
		a, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return nil, err
		}
		s.archive = a
	}

	pub, err := publish.New(cfg.Publish)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pub = pub

	return s, nil
}

func (s *sinks) saveSession(ctx context.Context, out monitor.Outcome) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.SaveSession(context.WithoutCancel(ctx), out.Session, out.Reading)
}

// report archives and publishes an analysis outcome. Sink failures are
// logged; they never change the outcome.
func (s *sinks) report(ctx context.Context, sessionID string, samples []float64, res *oscillometry.Result, err error, device *nibp.Reading) {
	// The measurement context may already be cancelled by a manual stop.
	ctx = context.WithoutCancel(ctx)

	if s.archive != nil {
		var aerr error
		if err != nil {
			aerr = s.archive.SaveFailure(ctx, sessionID, monitor.Describe(err))
		} else {
			aerr = s.archive.SaveResult(ctx, sessionID, res)
		}
		if aerr != nil {
			slog.Error("archiving result failed", "session", sessionID, "err", aerr)
		}
	}

	if s.pub != nil {
		msg := publish.NewMessage(sessionID, len(samples), res, err, device).WithTrace(samples)
		if perr := s.pub.Publish(ctx, msg); perr != nil {
			slog.Error("publishing result failed", "session", sessionID, "err", perr)
		}
	}
}

func (s *sinks) Close() {
	if s.pub != nil {
		if err := s.pub.Close(); err != nil {
			slog.Warn("closing publisher", "err", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			slog.Warn("closing archive", "err", err)
		}
	}
}
