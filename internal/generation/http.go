package generation

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

	"github.com/antoniostano/aegis/internal/reliability"
)

// HTTPAdapter forwards requests to a JSON completion endpoint.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *HTTPAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, &Error{Code: "invalid_request", Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, &Error{Code: "invalid_request", Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Response{}, &Error{Code: "canceled", Err: err}
		}
		return Response{}, &Error{Code: "unavailable", Retryable: true, Err: fmt.Errorf("send request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Response{}, &Error{
			Code:      fmt.Sprintf("http_%d", res.StatusCode),
			Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
			Err:       fmt.Errorf("provider status %d: %s", res.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, &Error{Code: "bad_response", Retryable: true, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Some providers return bare text.
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Response{}, &Error{Code: "empty_response", Err: errors.New("provider returned empty body")}
		}
		return Response{Text: text}, nil
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return Response{}, &Error{Code: "empty_response", Err: errors.New("provider returned no text")}
	}
	return parsed, nil
}
