package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"quotabot/internal/database"
)

const telemetryWriteTimeout = 5 * time.Second

// Recorder emits outcome telemetry for every processed message. The
// structured log line is written synchronously and cheaply; the durable
// write happens on a detached goroutine so it never adds latency or failure
// risk to the reply path. Store failures are swallowed and self-logged.
type Recorder struct {
	logger  *slog.Logger
	store   database.Store
	textCap int

	wg sync.WaitGroup
}

// NewRecorder creates a telemetry recorder. textCap bounds how much raw
// message text is persisted per record.
func NewRecorder(store database.Store, textCap int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger:  logger.With("component", "telemetry"),
		store:   store,
		textCap: textCap,
	}
}

// Record logs the outcome and schedules the durable write. It returns
// before the write completes.
func (r *Recorder) Record(ctx context.Context, record *database.TelemetryRecord) {
	if record == nil {
		return
	}

	record.RawText = truncateText(record.RawText, r.textCap)
	if record.EmittedAt.IsZero() {
		record.EmittedAt = time.Now().UTC()
	}

	r.logger.InfoContext(ctx, "Message processed",
		"user_id", record.UserID,
		"event_kind", record.EventKind,
		"trigger_kind", record.TriggerKind,
		"intent", record.Intent,
		"symbol", record.ResolvedSymbol,
		"external_calls", record.ExternalCalls,
		"latency_ms", record.LatencyMs,
		"succeeded", record.Succeeded,
		"error_detail", record.ErrorDetail)

	if r.store == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Panic during telemetry write", "panic", rec)
			}
		}()

		// Detached from the request context: the reply must not wait for,
		// or fail with, the durable write.
		writeCtx, cancel := context.WithTimeout(context.Background(), telemetryWriteTimeout)
		defer cancel()

		if err := r.store.AppendTelemetry(writeCtx, record); err != nil {
			r.logger.Error("Failed to persist telemetry record",
				"user_id", record.UserID, "trigger_kind", record.TriggerKind, "error", err)
		}
	}()
}

// Flush waits for all in-flight durable writes. Used on shutdown and in
// tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

func truncateText(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxLen], "")
}
