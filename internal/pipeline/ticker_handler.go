package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quotabot/internal/market"
)

// TickerHandlerConfig holds the crypto-ticker handler policy.
type TickerHandlerConfig struct {
	// MajorSymbols is the allow-list of symbols that get the analytics
	// enrichment attempt.
	MajorSymbols      []string
	TickerTimeout     time.Duration
	EnrichmentTimeout time.Duration
}

// tickerHandler resolves known crypto symbols to a price quote. It tries the
// primary source first and the secondary only when the primary yields
// nothing. Major symbols additionally get a best-effort analytics section;
// enrichment failure never fails the base reply. An unknown-but-parseable
// symbol declines so the fallback classifier gets a chance.
type tickerHandler struct {
	parser    *SymbolParser
	primary   market.TickerSource
	secondary market.TickerSource
	analytics market.AnalyticsSource
	majors    map[string]struct{}
	cfg       TickerHandlerConfig
	logger    *slog.Logger
}

// NewTickerHandler creates the crypto-ticker handler.
func NewTickerHandler(parser *SymbolParser, primary, secondary market.TickerSource, analytics market.AnalyticsSource, cfg TickerHandlerConfig, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	majors := make(map[string]struct{}, len(cfg.MajorSymbols))
	for _, s := range cfg.MajorSymbols {
		majors[strings.ToUpper(s)] = struct{}{}
	}
	return &tickerHandler{
		parser:    parser,
		primary:   primary,
		secondary: secondary,
		analytics: analytics,
		majors:    majors,
		cfg:       cfg,
		logger:    logger.With("handler", "ticker"),
	}
}

func (h *tickerHandler) Name() string { return string(TriggerTicker) }

func (h *tickerHandler) Handle(ctx context.Context, req *RequestContext) (*Outcome, error) {
	symbol, ok := h.parser.Parse(req.RawText)
	if !ok {
		return nil, nil
	}

	h.logger.InfoContext(ctx, "Handling ticker lookup", "user_id", req.UserID, "symbol", symbol)

	var externalCalls []string
	var errDetail []string

	snapshot, calls, errs := h.resolveTicker(ctx, symbol)
	externalCalls = append(externalCalls, calls...)
	errDetail = append(errDetail, errs...)

	if snapshot == nil {
		// Symbol parsed but no source knows it; let the fallback decide.
		h.logger.DebugContext(ctx, "No source resolved symbol, declining", "symbol", symbol)
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: $%s (%+.2f%% 24h) via %s", snapshot.Symbol, formatAmount(snapshot.Price), snapshot.ChangePct24h, snapshot.Source)

	if _, major := h.majors[symbol]; major && h.analytics != nil {
		enrichCtx, cancel := context.WithTimeout(ctx, h.cfg.EnrichmentTimeout)
		analytics, err := h.analytics.FetchAnalyticsSnapshot(enrichCtx, symbol)
		cancel()

		externalCalls = append(externalCalls, "analytics")
		if err != nil {
			h.logger.WarnContext(ctx, "Analytics enrichment failed, returning base reply", "symbol", symbol, "error", err)
			errDetail = append(errDetail, fmt.Sprintf("analytics: %v", err))
		} else if analytics != nil {
			fmt.Fprintf(&sb, "\nSentiment: %s | Funding: %.4f%% | Long/Short: %.2f",
				analytics.Sentiment, analytics.FundingRate, analytics.LongShortRatio)
		}
	}

	return &Outcome{
		Reply: &Reply{Text: sb.String(), Card: true},
		Meta: Metadata{
			Trigger:        TriggerTicker,
			Intent:         "price_query",
			ResolvedSymbol: symbol,
			ExternalCalls:  externalCalls,
			ErrorDetail:    strings.Join(errDetail, "; "),
		},
	}, nil
}

// resolveTicker tries the primary source, then the secondary only when the
// primary yields nothing, and reports every attempt made.
func (h *tickerHandler) resolveTicker(ctx context.Context, symbol string) (*market.TickerSnapshot, []string, []string) {
	var calls, errs []string

	for _, src := range []market.TickerSource{h.primary, h.secondary} {
		if src == nil {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, h.cfg.TickerTimeout)
		snapshot, err := src.FetchTicker(fetchCtx, symbol)
		cancel()

		calls = append(calls, "ticker:"+src.Name())
		if err != nil {
			h.logger.WarnContext(ctx, "Ticker source failed", "source", src.Name(), "symbol", symbol, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
			continue
		}
		if snapshot != nil {
			return snapshot, calls, errs
		}
	}

	return nil, calls, errs
}
