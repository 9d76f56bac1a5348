package moderation

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClassifier struct {
	findings []Finding
	err      error
	calls    int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) ([]Finding, error) {
	s.calls++
	return s.findings, s.err
}

func TestDecideCleanBothDetectors(t *testing.T) {
	v := decide(nil, nil, nil, StageInput, time.Now().UTC())
	if !v.Allowed {
		t.Fatalf("Allowed = false, want true")
	}
	if v.Source != SourceBoth {
		t.Fatalf("Source = %q, want %q", v.Source, SourceBoth)
	}
}

func TestDecideRuleFindingsBlockRegardlessOfClassifier(t *testing.T) {
	rule := []Finding{{Category: CategoryPII, Detector: DetectorRule, Confidence: 1.0}}

	for _, classifierErr := range []error{nil, ErrUnavailable} {
		v := decide(rule, nil, classifierErr, StageInput, time.Now().UTC())
		if v.Allowed {
			t.Fatalf("Allowed = true with rule findings (classifierErr=%v)", classifierErr)
		}
	}
}

func TestDecideClassifierUnavailableDegradesToRuleOnly(t *testing.T) {
	v := decide(nil, nil, ErrUnavailable, StageInput, time.Now().UTC())
	if !v.Allowed {
		t.Fatalf("classifier unavailability must not block a clean text")
	}
	if v.Source != SourceRuleOnly {
		t.Fatalf("Source = %q, want %q", v.Source, SourceRuleOnly)
	}
}

func TestDecideRetainsAllFindings(t *testing.T) {
	rule := []Finding{{Category: CategoryJailbreak, Detector: DetectorRule, Confidence: 1.0}}
	model := []Finding{{Category: CategoryJailbreak, Detector: DetectorModel, Confidence: 0.91}}

	v := decide(rule, model, nil, StageOutput, time.Now().UTC())
	if v.Allowed {
		t.Fatalf("Allowed = true, want false")
	}
	if len(v.Findings) != 2 {
		t.Fatalf("len(Findings) = %d, want 2 (no deduplication)", len(v.Findings))
	}
	if v.Source != SourceBoth {
		t.Fatalf("Source = %q, want %q", v.Source, SourceBoth)
	}
	if v.Findings[0].Detector != DetectorRule {
		t.Fatalf("rule findings must come first: %v", v.Findings)
	}
}

func TestDecideModelOnlyBlock(t *testing.T) {
	model := []Finding{{Category: CategoryOther, Detector: DetectorModel, Confidence: 0.7}}
	v := decide(nil, model, nil, StageInput, time.Now().UTC())
	if v.Allowed {
		t.Fatalf("Allowed = true, want false")
	}
	if v.Source != SourceModel {
		t.Fatalf("Source = %q, want %q", v.Source, SourceModel)
	}
}

func TestEvaluateClassifierErrorBecomesUnavailable(t *testing.T) {
	cls := &stubClassifier{err: errors.New("socket reset")}
	engine := NewEngine(NewRuleFilter(nil), cls, time.Second)

	v := engine.Evaluate(context.Background(), "what is the capital of Canada?", StageInput)
	if !v.Allowed {
		t.Fatalf("Allowed = false, want true")
	}
	if v.Source != SourceRuleOnly {
		t.Fatalf("Source = %q, want %q", v.Source, SourceRuleOnly)
	}
	if cls.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1", cls.calls)
	}
}

func TestEvaluatePIIRuleIndependentOfClassifier(t *testing.T) {
	cls := &stubClassifier{err: ErrUnavailable}
	engine := NewEngine(NewRuleFilter(nil), cls, time.Second)

	v := engine.Evaluate(context.Background(), "My SSN is 123-45-6789", StageInput)
	if v.Allowed {
		t.Fatalf("Allowed = true, want false")
	}
	var sawPII bool
	for _, f := range v.Findings {
		if f.Category == CategoryPII {
			sawPII = true
		}
	}
	if !sawPII {
		t.Fatalf("no pii finding in %v", v.Findings)
	}
}

func TestEvaluateNilClassifierIsRuleOnly(t *testing.T) {
	engine := NewEngine(NewRuleFilter(nil), nil, time.Second)
	v := engine.Evaluate(context.Background(), "hello there", StageOutput)
	if !v.Allowed || v.Source != SourceRuleOnly {
		t.Fatalf("verdict = %+v, want allowed rule_only", v)
	}
	if v.Stage != StageOutput {
		t.Fatalf("Stage = %q, want %q", v.Stage, StageOutput)
	}
}

func TestVerdictCategoriesDeduplicates(t *testing.T) {
	v := Verdict{Findings: []Finding{
		{Category: CategoryJailbreak, Detector: DetectorRule},
		{Category: CategoryJailbreak, Detector: DetectorModel},
		{Category: CategoryPII, Detector: DetectorRule},
	}}
	got := v.Categories()
	if len(got) != 2 || got[0] != "jailbreak" || got[1] != "pii" {
		t.Fatalf("Categories() = %v", got)
	}
}
