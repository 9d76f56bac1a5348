package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/aegis/internal/generation"
	"github.com/antoniostano/aegis/internal/orchestrator"
	"github.com/antoniostano/aegis/internal/protocol"
	"github.com/antoniostano/aegis/internal/reliability"
)

// handleChatWS runs a chat connection. Each client_turn goes through the
// full pipeline; results come back as assistant_turn messages. Writes stay
// single-threaded through the outbound channel.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "turn pipeline not configured")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan protocol.ClientTurn, 16)
	outbound := make(chan any, 16)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.runTurns(ctx, sessionID, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Drop if the outbound queue is saturated.
			}
			continue
		}

		turn, ok := parsed.(protocol.ClientTurn)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- turn:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// runTurns consumes client turns in order, keeping one session's turns
// strictly sequential on this connection.
func (s *Server) runTurns(ctx context.Context, defaultSessionID string, inbound <-chan protocol.ClientTurn, outbound chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case turn, ok := <-inbound:
			if !ok {
				return
			}
			sessionID := turn.SessionID
			if sessionID == "" {
				sessionID = defaultSessionID
			}

			result, err := s.runner.SubmitTurn(ctx, sessionID, turn.Text)
			if err != nil && !isTurnResultUsable(result) {
				errEvent := turnErrorEvent(sessionID, err)
				select {
				case <-ctx.Done():
					return
				case outbound <- errEvent:
				}
				continue
			}

			// Remember the session the pipeline settled on so later turns
			// without an explicit id stay in the same conversation.
			if defaultSessionID == "" {
				defaultSessionID = result.SessionID
			}

			msg := protocol.AssistantTurn{
				Type:       protocol.TypeAssistantTurn,
				SessionID:  result.SessionID,
				TurnID:     result.TurnID,
				Text:       result.Text,
				Blocked:    result.Blocked,
				Action:     result.Action,
				Categories: result.Categories,
			}
			select {
			case <-ctx.Done():
				return
			case outbound <- msg:
			}
		}
	}
}

// isTurnResultUsable reports whether a failed turn still produced a
// client-facing notice worth sending.
func isTurnResultUsable(result orchestrator.Result) bool {
	return result.TurnID != "" && result.Text != ""
}

// turnErrorEvent maps a pipeline failure onto a client-facing error event.
// Provider failures keep their stable error code so clients can decide
// whether resubmitting the turn is worthwhile.
func turnErrorEvent(sessionID string, err error) protocol.ErrorEvent {
	event := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      "turn_failed",
		Source:    "pipeline",
		Retryable: true,
		Detail:    "the turn could not be completed",
	}
	var genErr *generation.Error
	if errors.As(err, &genErr) {
		event.Code = genErr.Code
		event.Source = "provider"
		event.Retryable = genErr.Retryable || reliability.IsRetryableProviderCode(genErr.Code)
	}
	return event
}
