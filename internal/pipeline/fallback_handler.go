package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quotabot/internal/classifier"
	"quotabot/internal/market"
)

// FallbackHandlerConfig holds the fallback handler policy.
type FallbackHandlerConfig struct {
	ConfidenceThreshold float64
	ClassifyTimeout     time.Duration
	TickerTimeout       time.Duration
	// GuidanceCooldown is the minimum gap between guidance replies to the
	// same user; within it, low-confidence messages get silence.
	GuidanceCooldown time.Duration

	GuidanceReply string
	NotFoundReply string // fmt template naming the unresolved symbol
}

// fallbackHandler is the terminal handler: it never declines. Free text goes
// to the natural-language classifier; confident price queries get an equity
// lookup or an explicit not-found reply, everything else gets the guidance
// reply subject to the per-user cooldown.
type fallbackHandler struct {
	classifier classifier.Client
	equities   market.TickerSource
	cooldowns  *CooldownTracker
	cfg        FallbackHandlerConfig
	logger     *slog.Logger
}

// NewFallbackHandler creates the fallback handler.
func NewFallbackHandler(client classifier.Client, equities market.TickerSource, cooldowns *CooldownTracker, cfg FallbackHandlerConfig, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackHandler{
		classifier: client,
		equities:   equities,
		cooldowns:  cooldowns,
		cfg:        cfg,
		logger:     logger.With("handler", "fallback"),
	}
}

func (h *fallbackHandler) Name() string { return string(TriggerFallback) }

func (h *fallbackHandler) Handle(ctx context.Context, req *RequestContext) (*Outcome, error) {
	meta := Metadata{Trigger: TriggerFallback}

	classifyCtx, cancel := context.WithTimeout(ctx, h.cfg.ClassifyTimeout)
	intent, err := h.classifier.Classify(classifyCtx, req.RawText)
	cancel()

	meta.ExternalCalls = append(meta.ExternalCalls, "classifier")
	if err != nil {
		// Classifier outage degrades to the guidance path.
		h.logger.WarnContext(ctx, "Classification failed, degrading to guidance", "user_id", req.UserID, "error", err)
		meta.ErrorDetail = fmt.Sprintf("classifier: %v", err)
		return h.guidanceOutcome(ctx, req, meta), nil
	}

	if intent == nil || intent.Confidence < h.cfg.ConfidenceThreshold {
		return h.guidanceOutcome(ctx, req, meta), nil
	}

	meta.Intent = intent.Type

	if intent.Type == classifier.IntentPriceQuery && intent.Symbol != "" {
		return h.priceQueryOutcome(ctx, req, intent, meta)
	}

	return h.guidanceOutcome(ctx, req, meta), nil
}

func (h *fallbackHandler) priceQueryOutcome(ctx context.Context, req *RequestContext, intent *classifier.Intent, meta Metadata) (*Outcome, error) {
	symbol := strings.ToUpper(strings.TrimSpace(intent.Symbol))
	meta.ResolvedSymbol = symbol

	var snapshot *market.TickerSnapshot
	if h.equities == nil {
		meta.ErrorDetail = "no equity source configured"
	} else {
		fetchCtx, cancel := context.WithTimeout(ctx, h.cfg.TickerTimeout)
		var err error
		snapshot, err = h.equities.FetchTicker(fetchCtx, symbol)
		cancel()

		meta.ExternalCalls = append(meta.ExternalCalls, "ticker:"+h.equities.Name())
		if err != nil {
			h.logger.WarnContext(ctx, "Equity lookup failed", "symbol", symbol, "error", err)
			meta.ErrorDetail = fmt.Sprintf("%s: %v", h.equities.Name(), err)
		}
	}

	if snapshot == nil {
		// Explicit not-found reply, never silence: the user asked a real
		// question and deserves a real answer naming the symbol.
		h.logger.InfoContext(ctx, "Symbol unresolved, sending not-found reply", "user_id", req.UserID, "symbol", symbol)
		return &Outcome{
			Reply: &Reply{Text: fmt.Sprintf(h.cfg.NotFoundReply, symbol)},
			Meta:  meta,
		}, nil
	}

	h.logger.InfoContext(ctx, "Resolved classified price query", "user_id", req.UserID, "symbol", symbol)
	return &Outcome{
		Reply: &Reply{
			Text: fmt.Sprintf("%s: $%s (%+.2f%% 24h) via %s",
				snapshot.Symbol, formatAmount(snapshot.Price), snapshot.ChangePct24h, snapshot.Source),
			Card: true,
		},
		Meta: meta,
	}, nil
}

func (h *fallbackHandler) guidanceOutcome(ctx context.Context, req *RequestContext, meta Metadata) *Outcome {
	if meta.Intent == "" {
		meta.Intent = "guidance"
	}

	if !h.cooldowns.Allow(req.UserID, h.cfg.GuidanceCooldown) {
		h.logger.DebugContext(ctx, "Guidance cooldown active, staying silent", "user_id", req.UserID)
		return &Outcome{Reply: nil, Meta: meta}
	}

	h.logger.InfoContext(ctx, "Sending guidance reply", "user_id", req.UserID)
	return &Outcome{
		Reply: &Reply{Text: h.cfg.GuidanceReply},
		Meta:  meta,
	}
}
