// Package pipeline implements the conversational message routing pipeline:
// a rate-limiting guard, an ordered chain of intent handlers, a fallback
// classifier path, and fire-and-forget outcome telemetry.
package pipeline

import "context"

// RequestContext carries one inbound message through the pipeline. It is
// constructed by the ingestion boundary, never mutated, and discarded after
// Execute returns.
type RequestContext struct {
	UserID     int64
	RawText    string
	ReplyToken string // opaque routing handle for the caller; never inspected
	Privileged bool
}

// TriggerKind identifies which handler or pipeline path produced an outcome.
type TriggerKind string

const (
	TriggerCommand   TriggerKind = "command"
	TriggerCurrency  TriggerKind = "currency_conversion"
	TriggerTicker    TriggerKind = "crypto_ticker"
	TriggerFallback  TriggerKind = "fallback"
	TriggerExhausted TriggerKind = "exhausted"
	TriggerFault     TriggerKind = "fault"
)

// Reply is the payload handed back to the rendering layer. The pipeline is
// agnostic to its content; Card marks preformatted rich-card text as opposed
// to a plain one-liner.
type Reply struct {
	Text string
	Card bool
}

// Metadata describes what happened while producing an outcome. Trigger is
// always set, even for deliberately silent outcomes.
type Metadata struct {
	Trigger        TriggerKind
	Intent         string
	ResolvedSymbol string
	ExternalCalls  []string
	ErrorDetail    string
}

// Outcome is the final product of exactly one handler per request. A nil
// Reply means the handler matched but chose to stay silent.
type Outcome struct {
	Reply *Reply
	Meta  Metadata
}

// Handler is one link in the dispatch chain. Returning (nil, nil) declines
// the request and lets the chain continue; a non-nil Outcome is final. An
// error is a hard failure of the attempt: it propagates to the pipeline's
// top-level boundary instead of falling through to the next handler.
// Handlers must have no observable side effects when they decline.
type Handler interface {
	Name() string
	Handle(ctx context.Context, req *RequestContext) (*Outcome, error)
}
