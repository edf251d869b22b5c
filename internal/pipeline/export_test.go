package pipeline

import "time"

// Test hooks for injecting a deterministic clock.

func (g *Guard) SetClock(now func() time.Time) { g.now = now }

func (t *CooldownTracker) SetClock(now func() time.Time) { t.now = now }

func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }
