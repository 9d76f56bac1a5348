package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable signals that the classifier could not be consulted at all.
// Callers must treat this differently from an empty finding set: "could not
// check" is not "checked, clean".
var ErrUnavailable = errors.New("moderation classifier unavailable")

// Classifier is the model-based half of the hybrid engine.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Finding, error)
}

// HTTPClassifier calls an external moderation-capable model service.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Categories []string           `json:"categories"`
	RawScores  map[string]float64 `json:"raw_scores"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) ([]Finding, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %v: %w", err, ErrUnavailable)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return nil, fmt.Errorf("classifier status %d: %s: %w", res.StatusCode, strings.TrimSpace(string(body)), ErrUnavailable)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("malformed classifier response: %v: %w", err, ErrUnavailable)
	}

	findings := make([]Finding, 0, len(parsed.Categories))
	for _, raw := range parsed.Categories {
		confidence := 1.0
		if score, ok := parsed.RawScores[raw]; ok {
			confidence = score
		}
		findings = append(findings, Finding{
			Category:   normalizeCategory(raw),
			Detector:   DetectorModel,
			Confidence: confidence,
		})
	}
	return findings, nil
}

func normalizeCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryHateSpeech:
		return CategoryHateSpeech
	case CategoryPII:
		return CategoryPII
	case CategoryJailbreak:
		return CategoryJailbreak
	case CategoryDisallowedOutput:
		return CategoryDisallowedOutput
	default:
		return CategoryOther
	}
}

// MockClassifier reports every text as clean. Used in dev when no classifier
// service is configured but full-coverage verdicts are still wanted.
type MockClassifier struct{}

func NewMockClassifier() *MockClassifier { return &MockClassifier{} }

func (*MockClassifier) Classify(ctx context.Context, _ string) ([]Finding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return nil, nil
}
