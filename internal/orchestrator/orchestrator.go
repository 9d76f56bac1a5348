// Package orchestrator drives every chat turn through moderation,
// retrieval, generation and audit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/aegis/internal/audit"
	"github.com/antoniostano/aegis/internal/generation"
	"github.com/antoniostano/aegis/internal/memory"
	"github.com/antoniostano/aegis/internal/moderation"
	"github.com/antoniostano/aegis/internal/observability"
	"github.com/antoniostano/aegis/internal/policy"
	"github.com/antoniostano/aegis/internal/retrieval"
	"github.com/antoniostano/aegis/internal/session"
)

var ErrEmptyInput = errors.New("turn text is empty")

const (
	refusalInputText  = "I can't help with that. Please rephrase your request."
	refusalOutputText = "I generated a response that did not pass safety review. Let's try a different topic."
	retryNoticeText   = "Something went wrong while composing a reply. Please try again."
)

// Config bundles the orchestrator's tunables.
type Config struct {
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	AuditTimeout      time.Duration
	PromptBudgetChars int
	HistoryLimit      int
	SystemStyle       string
	StoreBlockedTurns bool
}

// Orchestrator owns the turn pipeline. Turns within one session run
// strictly one at a time; distinct sessions proceed concurrently.
type Orchestrator struct {
	sessions  *session.Manager
	engine    *moderation.Engine
	retriever retrieval.Client
	generator generation.Adapter
	store     memory.Store
	sink      audit.Sink
	metrics   *observability.Metrics
	locks     *sessionLocks
	cfg       Config
}

// Result is what a completed turn reports back to the transport layer.
type Result struct {
	TurnID     string   `json:"turn_id"`
	SessionID  string   `json:"session_id"`
	Text       string   `json:"text"`
	Blocked    bool     `json:"blocked"`
	Action     string   `json:"action"`
	Categories []string `json:"categories,omitempty"`
}

func New(
	sessions *session.Manager,
	engine *moderation.Engine,
	retriever retrieval.Client,
	generator generation.Adapter,
	store memory.Store,
	sink audit.Sink,
	metrics *observability.Metrics,
	cfg Config,
) *Orchestrator {
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 3 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = 2 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 8
	}
	if cfg.PromptBudgetChars <= 0 {
		cfg.PromptBudgetChars = 8000
	}
	return &Orchestrator{
		sessions:  sessions,
		engine:    engine,
		retriever: retriever,
		generator: generator,
		store:     store,
		sink:      sink,
		metrics:   metrics,
		locks:     newSessionLocks(),
		cfg:       cfg,
	}
}

// SubmitTurn runs one user message through the full pipeline. The audit
// record is written whatever the outcome, including generation failures.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, text string) (Result, error) {
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	sess := o.sessions.Ensure(sessionID)
	release := o.locks.acquire(sess.ID)
	defer release()

	turnID := uuid.NewString()
	start := time.Now()
	state := StateReceived

	var (
		inputVerdict  moderation.Verdict
		outputVerdict *moderation.Verdict
		draft         string
		passages      []string
		action        audit.Action
		finalText     string
		errCode       string
		turnErr       error
	)

	// Input moderation gates everything: no retrieval or generation
	// happens for a blocked turn.
	stageStart := time.Now()
	inputVerdict = o.engine.Evaluate(ctx, text, moderation.StageInput)
	o.observeStage("input_moderation", stageStart)
	o.countFindings(inputVerdict)
	state = StateInputModerated

	if !inputVerdict.Allowed {
		state = StateBlockedInput
		action = audit.ActionBlockedInput
		finalText = refusalInputText
	} else {
		state = StateRetrieving
		passages = o.retrieve(ctx, text)

		state = StateGenerating
		draft, turnErr = o.generate(ctx, sess.ID, turnID, text, passages)
		if turnErr != nil {
			state = StateError
			action = audit.ActionError
			finalText = retryNoticeText
			errCode = generationErrorCode(turnErr)
		} else {
			stageStart = time.Now()
			v := o.engine.Evaluate(ctx, draft, moderation.StageOutput)
			o.observeStage("output_moderation", stageStart)
			o.countFindings(v)
			outputVerdict = &v
			state = StateOutputModerated

			if !v.Allowed {
				state = StateBlockedOutput
				action = audit.ActionBlockedOutput
				finalText = refusalOutputText
			} else {
				state = StateServed
				action = audit.ActionServed
				finalText = draft
			}
		}
	}

	o.persistTurns(sess.ID, turnID, text, finalText, inputVerdict, outputVerdict, action)

	latency := time.Since(start)
	o.emitAudit(audit.Record{
		TurnID:        turnID,
		SessionID:     sess.ID,
		Action:        action,
		InputVerdict:  &inputVerdict,
		OutputVerdict: outputVerdict,
		ErrorCode:     errCode,
		LatencyMS:     latency.Milliseconds(),
	})
	if turnErr != nil {
		log.Printf("orchestrator: turn %s reached %s: %v", turnID, state, turnErr)
	}
	state = StateLogged

	blocked := action == audit.ActionBlockedInput || action == audit.ActionBlockedOutput
	if err := o.sessions.RecordTurn(sess.ID, blocked); err != nil {
		log.Printf("orchestrator: record turn on session %s: %v", sess.ID, err)
	}

	if o.metrics != nil {
		o.metrics.TurnOutcomes.WithLabelValues(string(action)).Inc()
		o.metrics.ObserveTurnLatency(latency)
		o.metrics.ObserveTurnStage("turn_total", latency)
	}

	result := Result{
		TurnID:     turnID,
		SessionID:  sess.ID,
		Text:       finalText,
		Blocked:    blocked,
		Action:     string(action),
		Categories: blockedCategories(action, inputVerdict, outputVerdict),
	}
	return result, turnErr
}

func (o *Orchestrator) retrieve(ctx context.Context, text string) []string {
	if o.retriever == nil {
		return nil
	}
	stageStart := time.Now()
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
	defer cancel()

	// Retrieval is best effort: a failed lookup degrades the turn to an
	// ungrounded reply instead of failing it.
	result, err := o.retriever.Query(rctx, text)
	o.observeStage("retrieval", stageStart)
	if err != nil {
		log.Printf("orchestrator: retrieval failed, continuing ungrounded: %v", err)
		if o.metrics != nil {
			o.metrics.ObserveTurnIndicator("retrieval_degraded")
		}
		return nil
	}
	passages := make([]string, 0, len(result.Passages))
	for _, p := range result.Passages {
		passages = append(passages, p.Text)
	}
	return passages
}

func (o *Orchestrator) generate(ctx context.Context, sessionID, turnID, text string, passages []string) (string, error) {
	history := o.historyLines(ctx, sessionID)

	req := generation.Request{
		SessionID:        sessionID,
		TurnID:           turnID,
		UserText:         text,
		History:          history,
		RetrievedContext: passages,
		SystemStyle:      o.cfg.SystemStyle,
	}
	req = generation.TrimHistory(req, o.cfg.PromptBudgetChars)

	stageStart := time.Now()
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	resp, err := o.generator.Generate(gctx, req)
	o.observeStage("generation", stageStart)
	if err != nil {
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues("generator", generationErrorCode(err)).Inc()
		}
		return "", fmt.Errorf("generate turn %s: %w", turnID, err)
	}
	return resp.Text, nil
}

func (o *Orchestrator) historyLines(ctx context.Context, sessionID string) []string {
	turns, err := o.store.History(ctx, sessionID)
	if err != nil {
		log.Printf("orchestrator: load history for %s: %v", sessionID, err)
		return nil
	}
	if over := len(turns) - o.cfg.HistoryLimit; over > 0 {
		turns = turns[over:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Text))
	}
	return lines
}

// persistTurns writes the user message and the assistant reply to memory.
// Saves are best effort. A draft that failed output moderation is never
// stored; the refusal stand-in takes its place. On a generation error the
// user turn is still kept so the conversation stays coherent on retry.
func (o *Orchestrator) persistTurns(
	sessionID, turnID, userText, finalText string,
	inputVerdict moderation.Verdict,
	outputVerdict *moderation.Verdict,
	action audit.Action,
) {
	blocked := action == audit.ActionBlockedInput || action == audit.ActionBlockedOutput
	if blocked && !o.cfg.StoreBlockedTurns {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.AuditTimeout)
	defer cancel()

	redacted, changed := policy.RedactPII(userText)
	userTurn := memory.Turn{
		SessionID:   sessionID,
		Role:        memory.RoleUser,
		Text:        redacted,
		PIIRedacted: changed,
		Verdict:     &inputVerdict,
	}
	if err := o.store.Append(ctx, userTurn); err != nil {
		log.Printf("orchestrator: save user turn %s: %v", turnID, err)
	}

	if action == audit.ActionError {
		return
	}

	assistantTurn := memory.Turn{
		SessionID: sessionID,
		Role:      memory.RoleAssistant,
		Text:      finalText,
		Verdict:   outputVerdict,
	}
	if err := o.store.Append(ctx, assistantTurn); err != nil {
		log.Printf("orchestrator: save assistant turn %s: %v", turnID, err)
	}
}

// emitAudit writes the audit record on a background context so a caller
// hanging up cannot lose the entry.
func (o *Orchestrator) emitAudit(rec audit.Record) {
	if o.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.AuditTimeout)
	defer cancel()
	rec.CreatedAt = time.Now().UTC()
	if err := o.sink.Write(ctx, rec); err != nil {
		log.Printf("orchestrator: write audit record %s: %v", rec.TurnID, err)
	}
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveTurnStage(stage, time.Since(start))
}

func (o *Orchestrator) countFindings(v moderation.Verdict) {
	if o.metrics == nil {
		return
	}
	for _, f := range v.Findings {
		o.metrics.ModerationFindings.WithLabelValues(
			string(v.Stage), string(f.Category), string(f.Detector),
		).Inc()
	}
	if v.Source == moderation.SourceRuleOnly {
		o.metrics.ObserveTurnIndicator("classifier_unavailable")
	}
}

func blockedCategories(action audit.Action, input moderation.Verdict, output *moderation.Verdict) []string {
	switch action {
	case audit.ActionBlockedInput:
		return input.Categories()
	case audit.ActionBlockedOutput:
		if output != nil {
			return output.Categories()
		}
	}
	return nil
}

func generationErrorCode(err error) string {
	var genErr *generation.Error
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}
