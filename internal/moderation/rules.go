package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Ruleset is the rule-based half of the moderation engine: curated keyword
// lexicons and PII patterns supplied as data, not code. Matching is
// deterministic, pure, and does no I/O.
type Ruleset struct {
	HateSpeechKeywords []string
	JailbreakPhrases   []string
	PIIPatterns        []*regexp.Regexp
}

// rulesetFile is the on-disk JSON shape of a Ruleset.
type rulesetFile struct {
	HateSpeechKeywords []string `json:"hate_speech_keywords"`
	JailbreakPhrases   []string `json:"jailbreak_phrases"`
	PIIPatterns        []string `json:"pii_patterns"`
}

// DefaultRuleset returns the built-in lexicons, used when no rules file is
// configured.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		HateSpeechKeywords: []string{
			"hate", "kill", "harm", "attack", "racist", "sexist", "violent",
			"nazi", "terrorist", "bomb", "explode", "genocide", "destroy",
			"murder", "weapon",
		},
		JailbreakPhrases: []string{
			"ignore previous instructions", "act as if", "override your programming",
			"pretend you are", "hypothetically", "new roleplay", "forbidden knowledge",
			"as a large language model", "developer mode", "do anything now",
			"disregard all prior instructions", "you are no longer an ai",
			"simulate being human", "forget everything you know", "act like a different ai",
			"jailbreak", "unleash your full potential", "execute the following code",
		},
		PIIPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		},
	}
}

// LoadRuleset reads a JSON lexicon file. Sections left empty in the file fall
// back to the built-in defaults so a partial file cannot silently disable a
// whole category.
func LoadRuleset(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesetFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	defaults := DefaultRuleset()
	rs := &Ruleset{
		HateSpeechKeywords: lowerAll(file.HateSpeechKeywords),
		JailbreakPhrases:   lowerAll(file.JailbreakPhrases),
	}
	if len(rs.HateSpeechKeywords) == 0 {
		rs.HateSpeechKeywords = defaults.HateSpeechKeywords
	}
	if len(rs.JailbreakPhrases) == 0 {
		rs.JailbreakPhrases = defaults.JailbreakPhrases
	}
	if len(file.PIIPatterns) == 0 {
		rs.PIIPatterns = defaults.PIIPatterns
	} else {
		for _, p := range file.PIIPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
			}
			rs.PIIPatterns = append(rs.PIIPatterns, re)
		}
	}
	return rs, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RuleFilter scans text against a swappable Ruleset. Swapping supports
// hot-reload of the lexicon file without restarting the service.
type RuleFilter struct {
	mu    sync.RWMutex
	rules *Ruleset
}

func NewRuleFilter(rules *Ruleset) *RuleFilter {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &RuleFilter{rules: rules}
}

// Swap replaces the active ruleset atomically.
func (f *RuleFilter) Swap(rules *Ruleset) {
	if rules == nil {
		return
	}
	f.mu.Lock()
	f.rules = rules
	f.mu.Unlock()
}

// Scan returns every rule finding for the text. Overlapping matches from
// different categories are all retained; a text can trigger PII and jailbreak
// at once. Rule matches always carry confidence 1.0.
func (f *RuleFilter) Scan(text string) []Finding {
	f.mu.RLock()
	rules := f.rules
	f.mu.RUnlock()

	lower := strings.ToLower(text)
	var findings []Finding

	for _, kw := range rules.HateSpeechKeywords {
		if strings.Contains(lower, kw) {
			findings = append(findings, Finding{
				Category:    CategoryHateSpeech,
				Detector:    DetectorRule,
				Confidence:  1.0,
				MatchedSpan: kw,
			})
		}
	}
	for _, re := range rules.PIIPatterns {
		if span := re.FindString(text); span != "" {
			findings = append(findings, Finding{
				Category:    CategoryPII,
				Detector:    DetectorRule,
				Confidence:  1.0,
				MatchedSpan: span,
			})
		}
	}
	for _, phrase := range rules.JailbreakPhrases {
		if strings.Contains(lower, phrase) {
			findings = append(findings, Finding{
				Category:    CategoryJailbreak,
				Detector:    DetectorRule,
				Confidence:  1.0,
				MatchedSpan: phrase,
			})
		}
	}
	return findings
}
