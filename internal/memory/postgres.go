package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antoniostano/aegis/internal/moderation"
)

// PostgresStore persists session history in PostgreSQL.
type PostgresStore struct {
	pool           *pgxpool.Pool
	retentionLimit int
}

func NewPostgresStore(ctx context.Context, databaseURL string, retentionLimit int) (*PostgresStore, error) {
	if retentionLimit <= 0 {
		retentionLimit = 20
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, retentionLimit: retentionLimit}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			verdict JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_session_created ON chat_turns (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	var verdictJSON []byte
	if turn.Verdict != nil {
		raw, err := json.Marshal(turn.Verdict)
		if err != nil {
			return fmt.Errorf("marshal verdict: %w", err)
		}
		verdictJSON = raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_turns (id, session_id, role, content, pii_redacted, verdict, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID,
		turn.SessionID,
		string(turn.Role),
		turn.Text,
		turn.PIIRedacted,
		verdictJSON,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	// FIFO retention: drop everything beyond the newest retentionLimit rows.
	_, err = tx.Exec(ctx,
		`DELETE FROM chat_turns WHERE session_id = $1 AND id IN (
			SELECT id FROM chat_turns WHERE session_id = $1
			ORDER BY created_at DESC, id DESC OFFSET $2)`,
		turn.SessionID,
		s.retentionLimit,
	)
	if err != nil {
		return fmt.Errorf("evict turns: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, pii_redacted, verdict, created_at
		 FROM chat_turns WHERE session_id=$1 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []Turn
	for rows.Next() {
		var (
			t           Turn
			role        string
			verdictJSON []byte
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Text, &t.PIIRedacted, &verdictJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		t.Role = Role(role)
		if len(verdictJSON) > 0 {
			var v moderation.Verdict
			if err := json.Unmarshal(verdictJSON, &v); err != nil {
				return nil, fmt.Errorf("unmarshal verdict: %w", err)
			}
			t.Verdict = &v
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
