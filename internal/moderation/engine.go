package moderation

import (
	"context"
	"errors"
	"time"
)

// Engine fuses rule findings with classifier findings into one verdict.
// Rules are authoritative: any rule finding blocks regardless of what the
// classifier says, because the rules encode hard compliance constraints that
// must not depend on a remote service being reachable.
type Engine struct {
	rules             *RuleFilter
	classifier        Classifier
	classifierTimeout time.Duration
}

// NewEngine builds a moderation engine. classifier may be nil, in which case
// every verdict is rule-only.
func NewEngine(rules *RuleFilter, classifier Classifier, classifierTimeout time.Duration) *Engine {
	if rules == nil {
		rules = NewRuleFilter(nil)
	}
	if classifierTimeout <= 0 {
		classifierTimeout = 5 * time.Second
	}
	return &Engine{
		rules:             rules,
		classifier:        classifier,
		classifierTimeout: classifierTimeout,
	}
}

// Evaluate runs both detectors independently and fuses their findings. It is
// invoked identically on user input and on draft output; the stage is carried
// in the verdict for auditing.
func (e *Engine) Evaluate(ctx context.Context, text string, stage Stage) Verdict {
	ruleFindings := e.rules.Scan(text)

	var (
		modelFindings []Finding
		classifyErr   error
	)
	if e.classifier == nil {
		classifyErr = ErrUnavailable
	} else {
		cctx, cancel := context.WithTimeout(ctx, e.classifierTimeout)
		modelFindings, classifyErr = e.classifier.Classify(cctx, text)
		cancel()
		if classifyErr != nil && !errors.Is(classifyErr, ErrUnavailable) {
			// Timeouts and cancellations count as unavailability, not as a
			// clean result.
			classifyErr = ErrUnavailable
		}
	}

	return decide(ruleFindings, modelFindings, classifyErr, stage, time.Now().UTC())
}

// decide is the pure fusion function over two independently obtained finding
// sets. Blocking is a simple OR across both sources; all findings are
// retained so the verdict never hides evidence. Classifier unavailability
// degrades coverage (source becomes rule_only) but never blocks by itself.
func decide(ruleFindings, modelFindings []Finding, classifierErr error, stage Stage, now time.Time) Verdict {
	findings := make([]Finding, 0, len(ruleFindings)+len(modelFindings))
	findings = append(findings, ruleFindings...)
	if classifierErr == nil {
		findings = append(findings, modelFindings...)
	}

	source := SourceBoth
	switch {
	case classifierErr != nil:
		source = SourceRuleOnly
	case len(ruleFindings) > 0 && len(modelFindings) > 0:
		source = SourceBoth
	case len(ruleFindings) > 0:
		source = SourceRule
	case len(modelFindings) > 0:
		source = SourceModel
	}

	return Verdict{
		Allowed:   len(findings) == 0,
		Findings:  findings,
		Source:    source,
		Stage:     stage,
		DecidedAt: now,
	}
}
