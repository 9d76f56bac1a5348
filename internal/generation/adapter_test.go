package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMockAdapterEchoesUserText(t *testing.T) {
	adapter := NewMockAdapter()
	resp, err := adapter.Generate(context.Background(), Request{UserText: "hello there"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(resp.Text, "hello there") {
		t.Fatalf("reply missing user text: %q", resp.Text)
	}
}

func TestMockAdapterUsesRetrievedContext(t *testing.T) {
	adapter := NewMockAdapter()
	resp, err := adapter.Generate(context.Background(), Request{
		UserText:         "when does the museum open",
		RetrievedContext: []string{"the museum opens at nine"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(resp.Text, "the museum opens at nine") {
		t.Fatalf("reply should ground in retrieved context: %q", resp.Text)
	}
}

func TestHTTPAdapterGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"a fine reply"}`))
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(server.URL, time.Second)
	resp, err := adapter.Generate(context.Background(), Request{UserText: "hi"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "a fine reply" {
		t.Fatalf("got %q, want %q", resp.Text, "a fine reply")
	}
}

func TestHTTPAdapterServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(server.URL, time.Second)
	_, err := adapter.Generate(context.Background(), Request{UserText: "hi"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *generation.Error, got %T", err)
	}
	if !genErr.Retryable {
		t.Errorf("500 should be retryable")
	}
	if genErr.Code != "http_500" {
		t.Errorf("code = %q, want http_500", genErr.Code)
	}
}

func TestHTTPAdapterBadRequestNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := NewHTTPAdapter(server.URL, time.Second)
	_, err := adapter.Generate(context.Background(), Request{UserText: "hi"})
	var genErr *Error
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *generation.Error, got %T", err)
	}
	if genErr.Retryable {
		t.Errorf("400 should not be retryable")
	}
}

func TestFallbackAdapterUsesSecondaryOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewFallbackAdapter(NewHTTPAdapter(server.URL, time.Second), NewMockAdapter())
	resp, err := adapter.Generate(context.Background(), Request{UserText: "still here"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(resp.Text, "still here") {
		t.Fatalf("fallback reply missing user text: %q", resp.Text)
	}
}

func TestFallbackAdapterDoesNotMaskCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewFallbackAdapter(NewMockAdapter(), NewMockAdapter())
	_, err := adapter.Generate(ctx, Request{UserText: "hi"})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTrimHistoryDropsOldestFirst(t *testing.T) {
	req := Request{
		UserText: "short",
		History:  []string{"oldest line here", "middle line here", "newest line here"},
	}
	budget := len(req.UserText) + len("middle line here") + len("newest line here")
	trimmed := TrimHistory(req, budget)
	if len(trimmed.History) != 2 {
		t.Fatalf("expected 2 history lines, got %d", len(trimmed.History))
	}
	if trimmed.History[0] != "middle line here" {
		t.Errorf("oldest line should drop first: %v", trimmed.History)
	}
}

func TestTrimHistoryKeepsWithinBudget(t *testing.T) {
	req := Request{UserText: "hi", History: []string{"a", "b"}}
	trimmed := TrimHistory(req, 1000)
	if len(trimmed.History) != 2 {
		t.Fatalf("history should be untouched under budget: %v", trimmed.History)
	}
}
