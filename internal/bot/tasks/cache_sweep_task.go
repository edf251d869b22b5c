package tasks

import (
	"context"
	"time"
)

// newCacheSweepTask creates the task that evicts stale entries from the
// per-user guard and cooldown caches. Both grow one entry per user and are
// never evicted on the request path, so without this sweep they would grow
// without bound.
func newCacheSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "cache_sweep")

	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-deps.Config.Scheduler.CacheRetention)

		guardRemoved := deps.Guard.Sweep(cutoff)
		cooldownRemoved := deps.Cooldowns.Sweep(cutoff)

		log.InfoContext(ctx, "Swept per-user caches",
			"cutoff", cutoff,
			"guard_removed", guardRemoved,
			"guard_remaining", deps.Guard.Len(),
			"cooldown_removed", cooldownRemoved,
			"cooldown_remaining", deps.Cooldowns.Len())
		return nil
	}
}
