package market

import (
	"context"
	"sort"
)

// StaticRateSource serves a fixed, operator-configured exchange rate. It
// backs deployments that have no live rate integration wired in.
type StaticRateSource struct {
	name string
	rate float64
}

// NewStaticRateSource creates a rate source that always returns the given
// rate for every currency.
func NewStaticRateSource(name string, rate float64) *StaticRateSource {
	return &StaticRateSource{name: name, rate: rate}
}

func (s *StaticRateSource) Name() string { return s.name }

func (s *StaticRateSource) FetchRate(_ context.Context, _ string) (float64, error) {
	return s.rate, nil
}

// StaticRateSources builds rate sources from a name-to-rate map, ordered by
// name so replies list sources deterministically.
func StaticRateSources(rates map[string]float64) []RateSource {
	names := make([]string, 0, len(rates))
	for name := range rates {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]RateSource, 0, len(names))
	for _, name := range names {
		sources = append(sources, NewStaticRateSource(name, rates[name]))
	}
	return sources
}
