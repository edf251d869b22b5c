// Package market defines the contracts for the external market-data
// collaborators the pipeline consumes. The concrete fetchers live outside
// this codebase; handlers depend only on these interfaces.
package market

import "context"

// TickerSnapshot is a point-in-time quote for a traded symbol.
type TickerSnapshot struct {
	Symbol       string
	Price        float64
	ChangePct24h float64
	Volume24h    float64
	Source       string
}

// AnalyticsSnapshot carries the secondary analytics enrichment for a major
// symbol: market sentiment, funding, and positioning.
type AnalyticsSnapshot struct {
	Symbol         string
	Sentiment      string
	FundingRate    float64
	LongShortRatio float64
}

// TickerSource retrieves a quote for a symbol. A nil snapshot with a nil
// error means "not found"; errors are reserved for transport failures.
type TickerSource interface {
	Name() string
	FetchTicker(ctx context.Context, symbol string) (*TickerSnapshot, error)
}

// AnalyticsSource retrieves a best-effort analytics snapshot for a symbol.
// Same nil/nil convention as TickerSource.
type AnalyticsSource interface {
	FetchAnalyticsSnapshot(ctx context.Context, symbol string) (*AnalyticsSnapshot, error)
}

// RateSource retrieves the exchange rate from one upstream for the given
// fiat currency, expressed as units of that currency per USD. Sources are
// independently callable and independently fallible.
type RateSource interface {
	Name() string
	FetchRate(ctx context.Context, currency string) (float64, error)
}
