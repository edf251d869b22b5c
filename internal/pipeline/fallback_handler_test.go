package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quotabot/internal/classifier"
	"quotabot/internal/market"
	"quotabot/internal/pipeline"
)

const (
	testGuidance = "try \"btc\" or \"7000twd\""
	testNotFound = "no quote for %s"
	testCooldown = 6 * time.Hour
)

func newFallbackHandler(c classifier.Client, equities market.TickerSource, cooldowns *pipeline.CooldownTracker) pipeline.Handler {
	if cooldowns == nil {
		cooldowns = pipeline.NewCooldownTracker()
	}
	return pipeline.NewFallbackHandler(c, equities, cooldowns, pipeline.FallbackHandlerConfig{
		ConfidenceThreshold: 0.6,
		ClassifyTimeout:     time.Second,
		TickerTimeout:       time.Second,
		GuidanceCooldown:    testCooldown,
		GuidanceReply:       testGuidance,
		NotFoundReply:       testNotFound,
	}, discardLogger())
}

func TestFallbackHandlerNeverDeclines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		classifier *fakeClassifier
	}{
		{name: "classifier error", classifier: &fakeClassifier{err: errors.New("api down")}},
		{name: "no opinion", classifier: &fakeClassifier{}},
		{name: "low confidence", classifier: &fakeClassifier{intent: &classifier.Intent{Type: classifier.IntentSmallTalk, Confidence: 0.3}}},
		{name: "confident small talk", classifier: &fakeClassifier{intent: &classifier.Intent{Type: classifier.IntentSmallTalk, Confidence: 0.9}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newFallbackHandler(tt.classifier, nil, nil)
			outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "hmm"})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if outcome == nil {
				t.Fatal("fallback handler must never decline")
			}
			if outcome.Meta.Trigger != pipeline.TriggerFallback {
				t.Errorf("trigger = %q, want %q", outcome.Meta.Trigger, pipeline.TriggerFallback)
			}
			if outcome.Reply == nil || outcome.Reply.Text != testGuidance {
				t.Errorf("reply = %+v, want guidance text", outcome.Reply)
			}
		})
	}
}

func TestFallbackHandlerClassifierErrorIsDegradation(t *testing.T) {
	t.Parallel()

	h := newFallbackHandler(&fakeClassifier{err: errors.New("api down")}, nil, nil)
	outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "hmm"})
	if err != nil {
		t.Fatalf("classifier outage must degrade, not fail: %v", err)
	}
	if !strings.Contains(outcome.Meta.ErrorDetail, "classifier") {
		t.Errorf("error detail = %q, want classifier failure recorded", outcome.Meta.ErrorDetail)
	}
}

func TestFallbackHandlerGuidanceCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cooldowns := pipeline.NewCooldownTracker()
	cooldowns.SetClock(clock.Now)
	h := newFallbackHandler(&fakeClassifier{}, nil, cooldowns)

	req := &pipeline.RequestContext{UserID: 1, RawText: "hmm"}

	outcome, err := h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome.Reply == nil || outcome.Reply.Text != testGuidance {
		t.Fatalf("first low-confidence message should get guidance, got %+v", outcome.Reply)
	}

	clock.Advance(time.Hour)
	outcome, err = h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome == nil {
		t.Fatal("fallback handler must never decline")
	}
	if outcome.Reply != nil {
		t.Errorf("inside the cooldown window the reply should be silence, got %+v", outcome.Reply)
	}
	if outcome.Meta.Trigger != pipeline.TriggerFallback {
		t.Errorf("silent outcome must still carry a trigger, got %q", outcome.Meta.Trigger)
	}

	clock.Advance(testCooldown)
	outcome, err = h.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome.Reply == nil || outcome.Reply.Text != testGuidance {
		t.Errorf("past the cooldown window guidance should be shown again, got %+v", outcome.Reply)
	}
}

func TestFallbackHandlerPriceQuery(t *testing.T) {
	t.Parallel()

	confident := &fakeClassifier{intent: &classifier.Intent{
		Type: classifier.IntentPriceQuery, Symbol: "tsla", Confidence: 0.95,
	}}

	t.Run("resolved symbol", func(t *testing.T) {
		t.Parallel()

		equities := &fakeTickerSource{name: "equities", snapshot: &market.TickerSnapshot{
			Symbol: "TSLA", Price: 242.1, ChangePct24h: -0.8, Source: "equities",
		}}
		h := newFallbackHandler(confident, equities, nil)

		outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "how is tesla doing"})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if outcome.Reply == nil || !strings.Contains(outcome.Reply.Text, "TSLA: $242.1") {
			t.Errorf("reply = %+v, want TSLA quote", outcome.Reply)
		}
		if outcome.Meta.ResolvedSymbol != "TSLA" {
			t.Errorf("resolved symbol = %q, want TSLA (normalized)", outcome.Meta.ResolvedSymbol)
		}
		if outcome.Meta.Intent != classifier.IntentPriceQuery {
			t.Errorf("intent = %q, want %q", outcome.Meta.Intent, classifier.IntentPriceQuery)
		}
	})

	t.Run("unresolved symbol gets explicit not-found", func(t *testing.T) {
		t.Parallel()

		h := newFallbackHandler(confident, &fakeTickerSource{name: "equities"}, nil)

		outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "how is tesla doing"})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if outcome.Reply == nil {
			t.Fatal("unresolved price query must get an explicit reply, not silence")
		}
		if outcome.Reply.Text != "no quote for TSLA" {
			t.Errorf("reply = %q, want not-found naming the symbol", outcome.Reply.Text)
		}
	})

	t.Run("lookup failure gets not-found with detail", func(t *testing.T) {
		t.Parallel()

		equities := &fakeTickerSource{name: "equities", err: errors.New("upstream 503")}
		h := newFallbackHandler(confident, equities, nil)

		outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "how is tesla doing"})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if outcome.Reply == nil || outcome.Reply.Text != "no quote for TSLA" {
			t.Errorf("reply = %+v, want not-found", outcome.Reply)
		}
		if !strings.Contains(outcome.Meta.ErrorDetail, "equities") {
			t.Errorf("error detail = %q, want lookup failure recorded", outcome.Meta.ErrorDetail)
		}
	})

	t.Run("no equity source wired gets not-found", func(t *testing.T) {
		t.Parallel()

		h := newFallbackHandler(confident, nil, nil)

		outcome, err := h.Handle(context.Background(), &pipeline.RequestContext{UserID: 1, RawText: "how is tesla doing"})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if outcome.Reply == nil || outcome.Reply.Text != "no quote for TSLA" {
			t.Errorf("reply = %+v, want not-found", outcome.Reply)
		}
	})
}
