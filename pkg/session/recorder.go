package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/itohio/gonibp/pkg/nibp"
)

// Recorder mirrors live samples into a CSV record file and a text log.
type Recorder struct {
	CSVPath string
	LogPath string

	mu      sync.Mutex
	csvFile *os.File
	logFile *os.File
	csv     *CSVWriter
	log     *LogWriter
	err     error
}

// FileNames returns the record and log file names for a session started at t.
func FileNames(t time.Time) (csvName, logName string) {
	stamp := t.Format("20060102_150405")
	return "nibp_data_" + stamp + ".csv", "log_" + stamp + ".txt"
}

// NewRecorder creates the record and log files for a session in dir.
func NewRecorder(dir string, startedAt time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	csvName, logName := FileNames(startedAt)
	r := &Recorder{
		CSVPath: filepath.Join(dir, csvName),
		LogPath: filepath.Join(dir, logName),
	}

	var err error
	if r.csvFile, err = os.Create(r.CSVPath); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if r.logFile, err = os.Create(r.LogPath); err != nil {
		r.csvFile.Close()
		return nil, fmt.Errorf("create log: %w", err)
	}
	r.csv = NewCSVWriter(r.csvFile)
	r.log = NewLogWriter(r.logFile)

	return r, nil
}

// Record writes s to both files. The first failure is kept and reported by
// Close; later samples are dropped.
func (r *Recorder) Record(s nibp.PressureSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	if err := r.csv.Write(s); err != nil {
		r.err = err
		return
	}
	r.err = r.log.Write(s)
}

// Note appends a line to the log.
func (r *Recorder) Note(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.err = r.log.Note(text)
	}
}

// Close flushes the record, writes the log trailer and closes both files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := []error{r.err, r.csv.Flush(), r.log.Close(), r.csvFile.Close(), r.logFile.Close()}
	return errors.Join(errs...)
}
