package tasks

import (
	"context"
	"fmt"
	"time"
)

// newTelemetryPurgeTask creates the task that enforces telemetry retention
// by deleting records older than the configured window.
func newTelemetryPurgeTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "telemetry_purge")

	return func(ctx context.Context) error {
		cutoff := time.Now().UTC().Add(-deps.Config.Scheduler.TelemetryRetention)

		count, err := deps.Store.PurgeTelemetryBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Telemetry purge failed", "cutoff", cutoff, "error", err)
			return fmt.Errorf("telemetry purge failed: %w", err)
		}

		log.InfoContext(ctx, "Purged old telemetry records", "cutoff", cutoff, "count", count)
		return nil
	}
}
