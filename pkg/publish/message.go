// Package publish announces finished measurements on a message broker.
package publish

import (
	"encoding/json"
	"time"

	"github.com/itohio/gonibp/pkg/monitor"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/session"
)

// TracePoints bounds the pressure preview carried by a message.
const TracePoints = 200

// Message is the JSON payload published for one analysed session.
// Exactly one of the pressure fields or Stage/Error is set.
type Message struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Samples   int       `json:"samples"`

	Method     string   `json:"method,omitempty"`
	MAP        *float64 `json:"map,omitempty"`
	Systolic   *float64 `json:"systolic,omitempty"`
	Diastolic  *float64 `json:"diastolic,omitempty"`
	Peaks      int      `json:"peaks,omitempty"`
	ValidPeaks int      `json:"valid_peaks,omitempty"`

	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	Device *nibp.Reading `json:"device,omitempty"`

	// Trace is a decimated preview of the cuff pressure, in mmHg.
	Trace []float64 `json:"trace,omitempty"`
}

// NewMessage builds the payload for a session. Either res or err is used.
func NewMessage(sessionID string, samples int, res *oscillometry.Result, err error, device *nibp.Reading) Message {
	msg := Message{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Samples:   samples,
		Device:    device,
	}

	if err != nil || res == nil {
		st := monitor.Describe(err)
		msg.Stage = string(st.Stage)
		msg.Error = st.Message
		return msg
	}

	msg.Method = string(res.Method)
	msg.MAP = &res.MAP
	msg.Systolic = &res.Systolic
	msg.Diastolic = &res.Diastolic
	msg.Peaks = res.Peaks.Len()
	msg.ValidPeaks = res.ValidPeaks.Len()
	return msg
}

// WithTrace attaches a preview of values decimated to TracePoints.
func (m Message) WithTrace(values []float64) Message {
	m.Trace = session.Downsample(nil, values, TracePoints)
	return m
}

// Marshal encodes the message.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
