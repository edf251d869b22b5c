package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"quotabot/internal/classifier"
	"quotabot/internal/database"
	"quotabot/internal/market"
	"quotabot/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source shared between a test and the
// components it drives.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore captures telemetry records in memory.
type fakeStore struct {
	mu        sync.Mutex
	records   []*database.TelemetryRecord
	appendErr error
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) AppendTelemetry(_ context.Context, record *database.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

func (s *fakeStore) GetRecentTelemetry(context.Context, int64, int) ([]*database.TelemetryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*database.TelemetryRecord(nil), s.records...), nil
}

func (s *fakeStore) PurgeTelemetryBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *fakeStore) RunSQLMaintenance(context.Context) error { return nil }

func (s *fakeStore) all() []*database.TelemetryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*database.TelemetryRecord(nil), s.records...)
}

// fakeRateSource returns a fixed rate or error.
type fakeRateSource struct {
	name string
	rate float64
	err  error
}

func (f *fakeRateSource) Name() string { return f.name }

func (f *fakeRateSource) FetchRate(context.Context, string) (float64, error) {
	return f.rate, f.err
}

// fakeTickerSource returns a fixed snapshot or error and counts calls.
type fakeTickerSource struct {
	name     string
	snapshot *market.TickerSnapshot
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeTickerSource) Name() string { return f.name }

func (f *fakeTickerSource) FetchTicker(context.Context, string) (*market.TickerSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.snapshot, f.err
}

func (f *fakeTickerSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAnalyticsSource returns a fixed analytics snapshot or error.
type fakeAnalyticsSource struct {
	snapshot *market.AnalyticsSnapshot
	err      error

	mu    sync.Mutex
	calls int
}

func (f *fakeAnalyticsSource) FetchAnalyticsSnapshot(context.Context, string) (*market.AnalyticsSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.snapshot, f.err
}

func (f *fakeAnalyticsSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClassifier returns a fixed intent or error.
type fakeClassifier struct {
	intent *classifier.Intent
	err    error
}

func (f *fakeClassifier) Classify(context.Context, string) (*classifier.Intent, error) {
	return f.intent, f.err
}

// funcHandler adapts a function into a Handler for chain tests.
type funcHandler struct {
	name string
	fn   func(ctx context.Context, req *pipeline.RequestContext) (*pipeline.Outcome, error)
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, req *pipeline.RequestContext) (*pipeline.Outcome, error) {
	return h.fn(ctx, req)
}
