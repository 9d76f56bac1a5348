package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is the normalized prompt handed to a generation provider.
type Request struct {
	SessionID        string   `json:"session_id"`
	TurnID           string   `json:"turn_id"`
	UserText         string   `json:"user_text"`
	History          []string `json:"history,omitempty"`
	RetrievedContext []string `json:"retrieved_context,omitempty"`
	SystemStyle      string   `json:"system_style,omitempty"`
}

// Response is the provider's completed reply.
type Response struct {
	Text string `json:"text"`
}

// Adapter bridges the turn pipeline with a reply provider.
type Adapter interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Error wraps a provider failure with a stable code the pipeline can
// report and a retryability hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("generation failed (%s)", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Config controls adapter construction.
type Config struct {
	Mode    string
	HTTPURL string
	Timeout time.Duration
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackAdapter(NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout), NewMockAdapter()), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("generator HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported generator mode %q", cfg.Mode)
	}
}
