package database

import (
	"strings"
	"time"
)

// Event kinds recorded in telemetry.
const (
	EventProcessed = "processed"
	EventFault     = "fault"
)

// TelemetryRecord describes the outcome of one processed inbound message.
// Records are write-once; the pipeline emits them and never updates them.
type TelemetryRecord struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	UserID         int64     `db:"user_id"`
	EventKind      string    `db:"event_kind"`
	TriggerKind    string    `db:"trigger_kind"`
	Intent         string    `db:"intent"`
	ResolvedSymbol string    `db:"resolved_symbol"`
	ExternalCalls  string    `db:"external_calls"` // comma-joined list of collaborator calls
	RawText        string    `db:"raw_text"`       // truncated before persistence
	LatencyMs      int64     `db:"latency_ms"`
	Succeeded      bool      `db:"succeeded"`
	ErrorDetail    string    `db:"error_detail"`
	EmittedAt      time.Time `db:"emitted_at"`
}

// ExternalCallList splits the stored comma-joined call list back into a slice.
func (r *TelemetryRecord) ExternalCallList() []string {
	if r.ExternalCalls == "" {
		return nil
	}
	return strings.Split(r.ExternalCalls, ",")
}
