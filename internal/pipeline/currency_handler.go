package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"quotabot/internal/market"
)

// CurrencyHandlerConfig holds the currency-conversion handler policy.
type CurrencyHandlerConfig struct {
	// DefaultRate substitutes for any rate source that fails or times out,
	// so a matched request always gets a reply.
	DefaultRate float64
	RateTimeout time.Duration
}

// currencyHandler converts <amount><currency> requests into a comparison of
// USD figures across all configured rate sources. Sources are queried
// concurrently and any subset may fail without failing the reply.
type currencyHandler struct {
	parser  *CurrencyParser
	sources []market.RateSource
	cfg     CurrencyHandlerConfig
	logger  *slog.Logger
}

// NewCurrencyHandler creates the currency-conversion handler.
func NewCurrencyHandler(parser *CurrencyParser, sources []market.RateSource, cfg CurrencyHandlerConfig, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &currencyHandler{
		parser:  parser,
		sources: sources,
		cfg:     cfg,
		logger:  logger.With("handler", "currency"),
	}
}

func (h *currencyHandler) Name() string { return string(TriggerCurrency) }

type rateResult struct {
	source   string
	rate     float64
	fellBack bool
}

func (h *currencyHandler) Handle(ctx context.Context, req *RequestContext) (*Outcome, error) {
	amount, ok := h.parser.Parse(req.RawText)
	if !ok {
		return nil, nil
	}

	h.logger.InfoContext(ctx, "Handling currency conversion",
		"user_id", req.UserID, "amount", amount.Amount, "currency", amount.Currency)

	// A matched request always gets a reply, even with no sources wired.
	if len(h.sources) == 0 {
		return h.renderOutcome(amount, []rateResult{{source: "default", rate: h.cfg.DefaultRate, fellBack: true}}, nil, nil), nil
	}

	results := make([]rateResult, len(h.sources))
	externalCalls := make([]string, len(h.sources))
	var failed []string
	var failedMu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range h.sources {
		externalCalls[i] = "rate:" + src.Name()
		g.Go(func() error {
			rateCtx, cancel := context.WithTimeout(gCtx, h.cfg.RateTimeout)
			defer cancel()

			rate, err := src.FetchRate(rateCtx, amount.Currency)
			if err != nil || rate <= 0 {
				if err != nil {
					h.logger.WarnContext(ctx, "Rate source failed, using default rate",
						"source", src.Name(), "currency", amount.Currency, "error", err)
				}
				failedMu.Lock()
				failed = append(failed, src.Name())
				failedMu.Unlock()
				results[i] = rateResult{source: src.Name(), rate: h.cfg.DefaultRate, fellBack: true}
				return nil
			}
			results[i] = rateResult{source: src.Name(), rate: rate}
			return nil
		})
	}
	// Workers never return errors; partial failure is tolerated per source.
	_ = g.Wait()

	return h.renderOutcome(amount, results, externalCalls, failed), nil
}

func (h *currencyHandler) renderOutcome(amount *CurrencyAmount, results []rateResult, externalCalls, failed []string) *Outcome {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s in USD:\n", formatAmount(amount.Amount), amount.Currency)
	for _, r := range results {
		converted := amount.Amount / r.rate
		note := ""
		if r.fellBack {
			note = " (default rate)"
		}
		fmt.Fprintf(&sb, "%s: %s USD @ %s%s\n", r.source, formatAmount(converted), formatAmount(r.rate), note)
	}

	meta := Metadata{
		Trigger:       TriggerCurrency,
		Intent:        "currency_conversion",
		ExternalCalls: externalCalls,
	}
	if len(failed) > 0 {
		meta.ErrorDetail = fmt.Sprintf("rate sources unavailable: %s", strings.Join(failed, ", "))
	}

	return &Outcome{
		Reply: &Reply{Text: strings.TrimRight(sb.String(), "\n"), Card: true},
		Meta:  meta,
	}
}

func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
