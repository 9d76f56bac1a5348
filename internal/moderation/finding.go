package moderation

import "time"

// Category classifies what a finding is about.
type Category string

const (
	CategoryHateSpeech       Category = "hate_speech"
	CategoryPII              Category = "pii"
	CategoryJailbreak        Category = "jailbreak"
	CategoryDisallowedOutput Category = "disallowed_output"
	CategoryOther            Category = "other"
)

// Detector identifies which half of the hybrid engine produced a finding.
type Detector string

const (
	DetectorRule  Detector = "rule"
	DetectorModel Detector = "model"
)

// Stage distinguishes moderation of user input from moderation of draft output.
type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

// Source records which detectors contributed to a verdict. SourceRuleOnly
// marks reduced coverage: the classifier could not be reached and the verdict
// rests on rules alone.
type Source string

const (
	SourceRule     Source = "rule"
	SourceModel    Source = "model"
	SourceBoth     Source = "both"
	SourceRuleOnly Source = "rule_only"
)

// Finding is one piece of evidence against a text. Rule matches are
// deterministic and carry confidence 1.0; model findings carry the
// classifier's score.
type Finding struct {
	Category    Category `json:"category"`
	Detector    Detector `json:"detector"`
	Confidence  float64  `json:"confidence"`
	MatchedSpan string   `json:"matched_span,omitempty"`
}

// Verdict is the engine's allow/block decision for one text plus the evidence
// behind it. Findings keep insertion order (rule findings first).
type Verdict struct {
	Allowed   bool      `json:"allowed"`
	Findings  []Finding `json:"findings,omitempty"`
	Source    Source    `json:"source"`
	Stage     Stage     `json:"stage"`
	DecidedAt time.Time `json:"decided_at"`
}

// Categories returns the distinct finding categories in evidence order.
func (v Verdict) Categories() []string {
	seen := make(map[Category]bool, len(v.Findings))
	out := make([]string, 0, len(v.Findings))
	for _, f := range v.Findings {
		if seen[f.Category] {
			continue
		}
		seen[f.Category] = true
		out = append(out, string(f.Category))
	}
	return out
}
