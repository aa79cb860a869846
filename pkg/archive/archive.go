// Package archive stores measurement sessions and their analysis outcomes in
// a SQLite database so traces can be replayed and re-analysed later.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itohio/gonibp/pkg/monitor"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/session"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Fixed-width UTC timestamps sort chronologically as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

var schema = []string{`
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  sample_count INTEGER NOT NULL,
  device_systolic REAL,
  device_diastolic REAL,
  device_bpm REAL
);`, `
CREATE TABLE IF NOT EXISTS samples (
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  idx INTEGER NOT NULL,
  ts TEXT NOT NULL,
  raw INTEGER NOT NULL,
  mmhg REAL NOT NULL,
  PRIMARY KEY (session_id, idx)
);`, `
CREATE TABLE IF NOT EXISTS results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  method TEXT,
  stage TEXT,
  message TEXT,
  map REAL,
  systolic REAL,
  diastolic REAL
);`,
}

// SessionInfo summarises a stored session.
type SessionInfo struct {
	ID        string
	StartedAt time.Time
	Samples   int
	Reading   *nibp.Reading
}

// Record is one stored analysis outcome. Failed analyses have Stage set and
// zero pressures.
type Record struct {
	SessionID string
	CreatedAt time.Time
	Method    oscillometry.Method
	Stage     monitor.Stage
	Message   string
	MAP       float64
	Systolic  float64
	Diastolic float64
}

// Failed reports whether the record describes a failed analysis.
func (r Record) Failed() bool {
	return r.Stage != ""
}

// Archive is a SQLite-backed session store.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}
	if err := a.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := a.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveSession stores the samples of buf and the device-reported reading, if
// any. Saving a session again replaces its samples.
func (a *Archive) SaveSession(ctx context.Context, buf *session.Buffer, reading *nibp.Reading) error {
	samples := buf.Samples()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sys, dia, bpm sql.NullFloat64
	if reading != nil {
		sys = sql.NullFloat64{Float64: reading.Systolic, Valid: true}
		dia = sql.NullFloat64{Float64: reading.Diastolic, Valid: true}
		bpm = sql.NullFloat64{Float64: reading.BPM, Valid: true}
	}

	const upsert = `
INSERT INTO sessions (id, started_at, sample_count, device_systolic, device_diastolic, device_bpm)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  started_at=excluded.started_at,
  sample_count=excluded.sample_count,
  device_systolic=excluded.device_systolic,
  device_diastolic=excluded.device_diastolic,
  device_bpm=excluded.device_bpm;
`
	if _, err := tx.ExecContext(ctx, upsert,
		buf.ID(), buf.StartedAt().UTC().Format(timeFormat), len(samples), sys, dia, bpm,
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE session_id = ?`, buf.ID()); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (session_id, idx, ts, raw, mmhg) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare samples: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		if _, err := stmt.ExecContext(ctx, buf.ID(), i, s.Timestamp.UTC().Format(timeFormat), s.Raw, s.MmHg); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// SaveResult stores a successful estimate for a session.
func (a *Archive) SaveResult(ctx context.Context, sessionID string, res *oscillometry.Result) error {
	const stmt = `
INSERT INTO results (session_id, created_at, method, map, systolic, diastolic)
VALUES (?, ?, ?, ?, ?, ?)
`
	_, err := a.db.ExecContext(ctx, stmt,
		sessionID, time.Now().UTC().Format(timeFormat), string(res.Method), res.MAP, res.Systolic, res.Diastolic)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// SaveFailure stores a failed analysis for a session.
func (a *Archive) SaveFailure(ctx context.Context, sessionID string, status monitor.Status) error {
	const stmt = `
INSERT INTO results (session_id, created_at, stage, message)
VALUES (?, ?, ?, ?)
`
	_, err := a.db.ExecContext(ctx, stmt,
		sessionID, time.Now().UTC().Format(timeFormat), string(status.Stage), status.Message)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// Pressures returns the stored trace of a session in sample order.
func (a *Archive) Pressures(ctx context.Context, sessionID string) ([]float64, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT sample_count FROM sessions WHERE id = ?`, sessionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `SELECT mmhg FROM samples WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0, n)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return out, nil
}

// Sessions lists stored sessions, newest first.
func (a *Archive) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT id, started_at, sample_count, device_systolic, device_diastolic, device_bpm
FROM sessions
ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info          SessionInfo
			started       string
			sys, dia, bpm sql.NullFloat64
		)
		if err := rows.Scan(&info.ID, &started, &info.Samples, &sys, &dia, &bpm); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if info.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("session %s: started_at: %w", info.ID, err)
		}
		if sys.Valid {
			info.Reading = &nibp.Reading{Systolic: sys.Float64, Diastolic: dia.Float64, BPM: bpm.Float64}
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return out, nil
}

// Results lists the analysis outcomes stored for a session, oldest first.
func (a *Archive) Results(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT created_at, method, stage, message, map, systolic, diastolic
FROM results
WHERE session_id = ?
ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			created                string
			method, stage, message sql.NullString
			mapP, sys, dia         sql.NullFloat64
		)
		if err := rows.Scan(&created, &method, &stage, &message, &mapP, &sys, &dia); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec := Record{
			SessionID: sessionID,
			Method:    oscillometry.Method(method.String),
			Stage:     monitor.Stage(stage.String),
			Message:   message.String,
			MAP:       mapP.Float64,
			Systolic:  sys.Float64,
			Diastolic: dia.Float64,
		}
		if rec.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("result created_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return out, nil
}
