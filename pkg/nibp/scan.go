package nibp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// MaxLineLength bounds a device line. Longer runs without a line break are
// dropped in MaxLineLength chunks as noise.
const MaxLineLength = 4096

// Scan reads device lines from r and forwards pressure and result events to
// out in arrival order. Unusable lines are dropped and reading continues.
//
// Scan returns nil after forwarding a result event or when ctx is done, and a
// *TransportError when r fails. It never closes out.
func Scan(ctx context.Context, r io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), MaxLineLength)
	scanner.Split(scanBoundedLines)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if ctx.Err() != nil {
				// Port closed under us by Close
				return nil
			}
			if err := scanner.Err(); err != nil {
				return &TransportError{Op: "read", Err: err}
			}
			return &TransportError{Op: "read", Err: io.ErrUnexpectedEOF}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev := ParseLine(line, time.Now())
		if ev.Kind == KindUnrecognized {
			if ev.Err != nil {
				slog.Debug("dropping malformed line", "line", line, "err", ev.Err)
			} else {
				slog.Debug("ignoring line", "line", line)
			}
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}

		if ev.Kind == KindResult {
			return nil
		}
	}
}

// scanBoundedLines splits like bufio.ScanLines but discards a full buffer
// with no line break instead of failing with bufio.ErrTooLong.
func scanBoundedLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= MaxLineLength {
		return len(data), []byte{}, nil
	}
	return advance, token, err
}
