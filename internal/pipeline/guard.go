package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// GuardConfig holds the suppression windows for the pre-chain guard.
type GuardConfig struct {
	BurstWindow time.Duration
	DedupWindow time.Duration
}

type guardEntry struct {
	lastText string
	lastSeen time.Time
}

// Guard is the per-user rate limiter and deduplicator that runs before the
// handler chain. State is process-wide, keyed by user ID, and overwritten on
// every message, including suppressed ones, so bursts are measured against a
// continuously advancing baseline.
//
// Concurrent requests from the same user race on the stored entry with
// last-write-wins semantics; the worst case is one extra admitted or
// suppressed message, which is accepted.
type Guard struct {
	cfg    GuardConfig
	logger *slog.Logger

	mu      sync.Mutex
	entries map[int64]guardEntry

	now func() time.Time // injectable clock for tests
}

// NewGuard creates a guard with the given suppression windows.
func NewGuard(cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:     cfg,
		logger:  logger.With("component", "guard"),
		entries: make(map[int64]guardEntry),
		now:     time.Now,
	}
}

// Admit decides whether a message may enter the handler chain. The rules
// apply in order: a message inside the burst window of the user's previous
// one is suppressed regardless of content; an identical message inside the
// dedup window is suppressed as an accidental retry; everything else is
// admitted. The stored entry is updated before the verdict is used.
func (g *Guard) Admit(userID int64, text string) bool {
	now := g.now()

	g.mu.Lock()
	prev, seen := g.entries[userID]
	g.entries[userID] = guardEntry{lastText: text, lastSeen: now}
	g.mu.Unlock()

	if !seen {
		return true
	}

	elapsed := now.Sub(prev.lastSeen)
	if elapsed < g.cfg.BurstWindow {
		g.logger.Debug("Suppressing burst message", "user_id", userID, "elapsed", elapsed)
		return false
	}
	if text == prev.lastText && elapsed < g.cfg.DedupWindow {
		g.logger.Debug("Suppressing duplicate message", "user_id", userID, "elapsed", elapsed)
		return false
	}
	return true
}

// Sweep evicts entries not touched since the cutoff and returns the number
// removed. Entries that old can no longer influence any suppression verdict.
func (g *Guard) Sweep(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for userID, e := range g.entries {
		if e.lastSeen.Before(cutoff) {
			delete(g.entries, userID)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked users.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// CooldownTracker records when a per-user event last happened and gates how
// often it may recur. The fallback handler uses it to avoid repeating the
// guidance reply within the configured cooldown window.
type CooldownTracker struct {
	mu   sync.Mutex
	last map[int64]time.Time

	now func() time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		last: make(map[int64]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether the event may happen for this user, recording the
// occurrence when it may. Within the window it returns false and records
// nothing, so the cooldown anchors on the last shown event, not the last
// attempt.
func (t *CooldownTracker) Allow(userID int64, window time.Duration) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[userID]; ok && now.Sub(last) < window {
		return false
	}
	t.last[userID] = now
	return true
}

// Sweep evicts entries recorded before the cutoff and returns the number
// removed.
func (t *CooldownTracker) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for userID, ts := range t.last {
		if ts.Before(cutoff) {
			delete(t.last, userID)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked users.
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
