package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quotabot/internal/database"
)

// Pipeline is the root orchestrator: guard, handler chain, telemetry. It is
// the single failure boundary; callers always get a reply payload or nil,
// never an error.
type Pipeline struct {
	guard    *Guard
	chain    []Handler
	recorder *Recorder
	logger   *slog.Logger

	busyReply string

	now func() time.Time
}

// NewPipeline wires the guard, the ordered handler chain, and the telemetry
// recorder. busyReply is the generic user-safe text returned on internal
// faults.
func NewPipeline(guard *Guard, chain []Handler, recorder *Recorder, busyReply string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		guard:     guard,
		chain:     chain,
		recorder:  recorder,
		logger:    logger.With("component", "pipeline"),
		busyReply: busyReply,
		now:       time.Now,
	}
}

// Execute routes one inbound message and returns the reply payload, or nil
// when nothing should be sent. Suppressed messages produce no telemetry;
// every message that reaches the chain produces exactly one record.
func (p *Pipeline) Execute(ctx context.Context, req *RequestContext) (reply *Reply) {
	start := p.now()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.ErrorContext(ctx, "Panic in pipeline, converting to busy reply",
				"user_id", req.UserID, "panic", rec)
			p.recordFault(ctx, req, start, fmt.Sprintf("panic: %v", rec))
			reply = &Reply{Text: p.busyReply}
		}
	}()

	if !p.guard.Admit(req.UserID, req.RawText) {
		// Suppressed traffic never reaches a handler and is not telemetered.
		p.logger.DebugContext(ctx, "Message suppressed by guard", "user_id", req.UserID)
		return nil
	}

	for _, h := range p.chain {
		outcome, err := h.Handle(ctx, req)
		if err != nil {
			p.logger.ErrorContext(ctx, "Handler failed",
				"handler", h.Name(), "user_id", req.UserID, "error", err)
			p.recordFault(ctx, req, start, fmt.Sprintf("%s: %v", h.Name(), err))
			return &Reply{Text: p.busyReply}
		}
		if outcome == nil {
			continue
		}

		p.recordOutcome(ctx, req, start, outcome)
		return outcome.Reply
	}

	// Unreachable while the fallback handler is terminal, but the chain
	// defensively supports full exhaustion.
	p.logger.WarnContext(ctx, "All handlers declined", "user_id", req.UserID)
	p.recorder.Record(ctx, &database.TelemetryRecord{
		UserID:      req.UserID,
		EventKind:   database.EventProcessed,
		TriggerKind: string(TriggerExhausted),
		RawText:     req.RawText,
		LatencyMs:   p.sinceMs(start),
		Succeeded:   true,
		EmittedAt:   p.now().UTC(),
	})
	return nil
}

// Flush waits for pending telemetry writes. Intended for shutdown.
func (p *Pipeline) Flush() {
	p.recorder.Flush()
}

func (p *Pipeline) recordOutcome(ctx context.Context, req *RequestContext, start time.Time, outcome *Outcome) {
	// A handled-but-degraded path is still a pipeline success; ErrorDetail
	// carries the degradation.
	p.recorder.Record(ctx, &database.TelemetryRecord{
		UserID:         req.UserID,
		EventKind:      database.EventProcessed,
		TriggerKind:    string(outcome.Meta.Trigger),
		Intent:         outcome.Meta.Intent,
		ResolvedSymbol: outcome.Meta.ResolvedSymbol,
		ExternalCalls:  strings.Join(outcome.Meta.ExternalCalls, ","),
		RawText:        req.RawText,
		LatencyMs:      p.sinceMs(start),
		Succeeded:      true,
		ErrorDetail:    outcome.Meta.ErrorDetail,
		EmittedAt:      p.now().UTC(),
	})
}

func (p *Pipeline) recordFault(ctx context.Context, req *RequestContext, start time.Time, detail string) {
	p.recorder.Record(ctx, &database.TelemetryRecord{
		UserID:      req.UserID,
		EventKind:   database.EventFault,
		TriggerKind: string(TriggerFault),
		RawText:     req.RawText,
		LatencyMs:   p.sinceMs(start),
		Succeeded:   false,
		ErrorDetail: detail,
		EmittedAt:   p.now().UTC(),
	})
}

func (p *Pipeline) sinceMs(start time.Time) int64 {
	return p.now().Sub(start).Milliseconds()
}
