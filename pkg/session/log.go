package session

import (
	"fmt"
	"io"

	"github.com/itohio/gonibp/pkg/nibp"
)

// LogTrailer ends a session log.
const LogTrailer = "=== Done ==="

// LogLine formats a sample the way the session log shows it.
func LogLine(s nibp.PressureSample) string {
	return fmt.Sprintf("%s | RAW: %d | mmHg: %.2f", s.Timestamp.Format(TimeLayout), s.Raw, s.MmHg)
}

// LogWriter writes human-readable session logs.
type LogWriter struct {
	w io.Writer
}

// NewLogWriter wraps w.
func NewLogWriter(w io.Writer) *LogWriter {
	return &LogWriter{w: w}
}

// Write appends one sample line.
func (l *LogWriter) Write(s nibp.PressureSample) error {
	_, err := fmt.Fprintln(l.w, LogLine(s))
	return err
}

// Note appends a free-form line, e.g. the device summary or a status.
func (l *LogWriter) Note(text string) error {
	_, err := fmt.Fprintln(l.w, text)
	return err
}

// Close writes the trailer. It does not close the underlying writer.
func (l *LogWriter) Close() error {
	_, err := fmt.Fprintf(l.w, "\n%s\n", LogTrailer)
	return err
}
