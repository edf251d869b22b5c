// Package tasks implements scheduled maintenance tasks for QuotaBot:
// per-user cache eviction, telemetry retention, and SQL maintenance.
package tasks

import (
	"log/slog"

	"quotabot/internal/config"
	"quotabot/internal/database"
	"quotabot/internal/pipeline"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Guard     *pipeline.Guard
	Cooldowns *pipeline.CooldownTracker
	Config    *config.Config
}
