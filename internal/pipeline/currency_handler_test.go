package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quotabot/internal/market"
	"quotabot/internal/pipeline"
)

func newCurrencyHandler(sources []market.RateSource) pipeline.Handler {
	return pipeline.NewCurrencyHandler(
		pipeline.NewCurrencyParser([]string{"twd"}),
		sources,
		pipeline.CurrencyHandlerConfig{DefaultRate: 30.0, RateTimeout: time.Second},
		discardLogger(),
	)
}

func TestCurrencyHandlerDeclinesNonMatches(t *testing.T) {
	t.Parallel()

	h := newCurrencyHandler([]market.RateSource{&fakeRateSource{name: "bank", rate: 31}})

	for _, input := range []string{"hello", "7000xyz", "btc"} {
		outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: input})
		if err != nil {
			t.Fatalf("Handle(%q) error = %v", input, err)
		}
		if outcome != nil {
			t.Errorf("Handle(%q) = %+v, want decline", input, outcome)
		}
	}
}

func TestCurrencyHandlerFanOut(t *testing.T) {
	t.Parallel()

	h := newCurrencyHandler([]market.RateSource{
		&fakeRateSource{name: "bank", rate: 32},
		&fakeRateSource{name: "exchange", rate: 28},
	})

	outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "7000twd"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome == nil || outcome.Reply == nil {
		t.Fatal("Handle() should always reply on a parsed amount")
	}

	// 7000 TWD at 32 and 28 TWD per USD.
	for _, want := range []string{"7000 TWD in USD:", "bank: 218.75 USD @ 32", "exchange: 250 USD @ 28"} {
		if !strings.Contains(outcome.Reply.Text, want) {
			t.Errorf("reply %q missing %q", outcome.Reply.Text, want)
		}
	}

	if outcome.Meta.Trigger != pipeline.TriggerCurrency {
		t.Errorf("trigger = %q, want %q", outcome.Meta.Trigger, pipeline.TriggerCurrency)
	}
	if outcome.Meta.ErrorDetail != "" {
		t.Errorf("error detail = %q, want empty", outcome.Meta.ErrorDetail)
	}
	wantCalls := []string{"rate:bank", "rate:exchange"}
	if len(outcome.Meta.ExternalCalls) != len(wantCalls) {
		t.Fatalf("external calls = %v, want %v", outcome.Meta.ExternalCalls, wantCalls)
	}
	for i, want := range wantCalls {
		if outcome.Meta.ExternalCalls[i] != want {
			t.Errorf("external call %d = %q, want %q", i, outcome.Meta.ExternalCalls[i], want)
		}
	}
}

func TestCurrencyHandlerPartialFailure(t *testing.T) {
	t.Parallel()

	h := newCurrencyHandler([]market.RateSource{
		&fakeRateSource{name: "bank", rate: 32},
		&fakeRateSource{name: "exchange", err: errors.New("connection refused")},
	})

	outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "7000twd"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome == nil || outcome.Reply == nil {
		t.Fatal("partial failure must still produce a reply")
	}

	if !strings.Contains(outcome.Reply.Text, "exchange: 233.33 USD @ 30 (default rate)") {
		t.Errorf("reply %q missing default-rate line for the failed source", outcome.Reply.Text)
	}
	if !strings.Contains(outcome.Meta.ErrorDetail, "exchange") {
		t.Errorf("error detail = %q, want mention of failed source", outcome.Meta.ErrorDetail)
	}
}

func TestCurrencyHandlerAllSourcesFail(t *testing.T) {
	t.Parallel()

	h := newCurrencyHandler([]market.RateSource{
		&fakeRateSource{name: "bank", err: errors.New("down")},
		&fakeRateSource{name: "exchange", err: errors.New("down")},
	})

	outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "7000twd"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome == nil || outcome.Reply == nil {
		t.Fatal("total source failure must still produce a reply via the default rate")
	}
	if !strings.Contains(outcome.Reply.Text, "(default rate)") {
		t.Errorf("reply %q should mark default-rate figures", outcome.Reply.Text)
	}
	if outcome.Meta.ErrorDetail == "" {
		t.Error("error detail should record the unavailable sources")
	}
}

func TestCurrencyHandlerNoSourcesWired(t *testing.T) {
	t.Parallel()

	h := newCurrencyHandler(nil)

	outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "7000twd"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome == nil || outcome.Reply == nil {
		t.Fatal("a matched request must get a reply even with no sources wired")
	}
	if !strings.Contains(outcome.Reply.Text, "default: 233.33 USD @ 30 (default rate)") {
		t.Errorf("reply %q missing the default-rate line", outcome.Reply.Text)
	}
}
