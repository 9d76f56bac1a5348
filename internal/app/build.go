// Package app wires configuration into a runnable service.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/antoniostano/aegis/internal/audit"
	"github.com/antoniostano/aegis/internal/config"
	"github.com/antoniostano/aegis/internal/generation"
	"github.com/antoniostano/aegis/internal/httpapi"
	"github.com/antoniostano/aegis/internal/memory"
	"github.com/antoniostano/aegis/internal/moderation"
	"github.com/antoniostano/aegis/internal/observability"
	"github.com/antoniostano/aegis/internal/orchestrator"
	"github.com/antoniostano/aegis/internal/retrieval"
	"github.com/antoniostano/aegis/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *orchestrator.Orchestrator
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	rules := moderation.DefaultRuleset()
	if cfg.ModerationRulesPath != "" {
		loaded, err := moderation.LoadRuleset(cfg.ModerationRulesPath)
		if err != nil {
			return nil, fmt.Errorf("moderation rules init failed: %w", err)
		}
		rules = loaded
		log.Printf("moderation: loaded rules from %s", cfg.ModerationRulesPath)
	}
	filter := moderation.NewRuleFilter(rules)
	if cfg.ModerationRulesWatch {
		if err := moderation.WatchRules(ctx, cfg.ModerationRulesPath, filter); err != nil {
			return nil, fmt.Errorf("moderation rules watch failed: %w", err)
		}
		log.Printf("moderation: watching %s for rule changes", cfg.ModerationRulesPath)
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}
	engine := moderation.NewEngine(filter, classifier, cfg.ClassifierTimeout)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.RetentionLimit)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	retriever, err := retrieval.NewClient(
		cfg.RetrievalMode,
		cfg.RetrievalHTTPURL,
		cfg.RetrievalDataPath,
		cfg.RetrievalTimeout,
		cfg.RetrievalTopK,
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("retrieval init failed: %w", err)
	}

	generator, err := generation.NewAdapter(generation.Config{
		Mode:    cfg.GeneratorMode,
		HTTPURL: cfg.GeneratorHTTPURL,
		Timeout: cfg.GenerationTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("generation adapter init failed: %w", err)
	}

	ring := audit.NewRingSink(256)
	var sink audit.Sink = ring
	var fileSink *audit.FileSink
	if cfg.AuditLogPath != "" {
		fileSink, err = audit.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("audit sink init failed: %w", err)
		}
		sink = audit.NewMultiSink(fileSink, ring)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	orch := orchestrator.New(
		sessions,
		engine,
		retriever,
		generator,
		store,
		sink,
		metrics,
		orchestrator.Config{
			RetrievalTimeout:  cfg.RetrievalTimeout,
			GenerationTimeout: cfg.GenerationTimeout,
			PromptBudgetChars: cfg.PromptBudgetChars,
			HistoryLimit:      cfg.HistoryLimit,
			SystemStyle:       cfg.SystemStyle,
			StoreBlockedTurns: cfg.StoreBlockedTurns,
		},
	)

	seeder, _ := retriever.(retrieval.Seeder)
	api := httpapi.New(cfg, sessions, orch, store, ring, seeder, metrics)

	cleanup := func() error {
		var errs []string
		if fileSink != nil {
			if err := fileSink.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if closer, ok := retriever.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orch,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}

func buildClassifier(cfg config.Config) (moderation.Classifier, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ClassifierMode))
	if mode == "" {
		mode = "auto"
	}
	switch mode {
	case "off":
		log.Printf("moderation: classifier disabled, rules only")
		return nil, nil
	case "http":
		if cfg.ClassifierHTTPURL == "" {
			return nil, fmt.Errorf("classifier mode http requires CLASSIFIER_HTTP_URL")
		}
		return moderation.NewHTTPClassifier(cfg.ClassifierHTTPURL, cfg.ClassifierTimeout), nil
	case "mock":
		return moderation.NewMockClassifier(), nil
	case "auto":
		if cfg.ClassifierHTTPURL != "" {
			return moderation.NewHTTPClassifier(cfg.ClassifierHTTPURL, cfg.ClassifierTimeout), nil
		}
		log.Printf("moderation: no classifier configured, using mock")
		return moderation.NewMockClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", cfg.ClassifierMode)
	}
}
