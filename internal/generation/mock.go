package generation

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no provider is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Generate(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, &Error{Code: "canceled", Err: ctx.Err()}
	default:
	}

	return Response{Text: buildMockReply(req)}, nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.UserText)
	if base == "" {
		base = "I am listening."
	}

	if len(req.RetrievedContext) > 0 {
		top := strings.TrimSpace(req.RetrievedContext[0])
		if top != "" {
			return fmt.Sprintf("You asked: %s\nFrom what I know: %s", base, top)
		}
	}

	if len(req.History) == 0 {
		return fmt.Sprintf("You asked: %s", base)
	}

	last := strings.TrimSpace(req.History[len(req.History)-1])
	if last == "" {
		return fmt.Sprintf("You asked: %s", base)
	}

	return fmt.Sprintf("You asked: %s\nEarlier you said: %s", base, last)
}
