package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient queries an external retrieval service over JSON/HTTP.
type HTTPClient struct {
	url    string
	client *http.Client
	topK   int
}

type httpQueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type httpQueryResponse struct {
	Passages []Passage `json:"passages"`
}

func NewHTTPClient(url string, timeout time.Duration, topK int) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if topK <= 0 {
		topK = 3
	}
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		topK:   topK,
	}
}

func (c *HTTPClient) Query(ctx context.Context, text string) (Context, error) {
	body, err := json.Marshal(httpQueryRequest{Query: text, TopK: c.topK})
	if err != nil {
		return Context{}, fmt.Errorf("marshal retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Context{}, fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Context{}, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Context{}, fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed httpQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Context{}, fmt.Errorf("decode retrieval response: %w", err)
	}

	return Context{Query: text, Passages: rank(parsed.Passages, c.topK)}, nil
}
