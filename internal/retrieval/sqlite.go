package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex persists passages in a local SQLite file so the corpus
// survives restarts. Scoring happens in process with the same lexical
// scorer the in-memory index uses.
type SQLiteIndex struct {
	mu   sync.RWMutex
	db   *sql.DB
	topK int
}

func NewSQLiteIndex(dataPath string, topK int) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if topK <= 0 {
		topK = 3
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "passages.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db, topK: topK}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (idx *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS passages (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_passages_doc_id ON passages(doc_id);
	`
	_, err := idx.db.Exec(schema)
	return err
}

func (idx *SQLiteIndex) Add(ctx context.Context, docID, text string) error {
	if docID == "" {
		docID = uuid.NewString()
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Keyed on the document id so re-seeding the same document replaces
	// its passage instead of accumulating duplicates.
	_, err := idx.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO passages (id, doc_id, content) VALUES (?, ?, ?)`,
		docID, docID, text,
	)
	if err != nil {
		return fmt.Errorf("inserting passage: %w", err)
	}
	return nil
}

func (idx *SQLiteIndex) Query(ctx context.Context, text string) (Context, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.QueryContext(ctx, `SELECT doc_id, content FROM passages`)
	if err != nil {
		return Context{}, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var scored []Passage
	for rows.Next() {
		var docID, content string
		if err := rows.Scan(&docID, &content); err != nil {
			return Context{}, fmt.Errorf("scanning passage: %w", err)
		}
		score := lexicalScore(text, content)
		if score <= 0 {
			continue
		}
		scored = append(scored, Passage{DocID: docID, Text: content, Score: score})
	}
	if err := rows.Err(); err != nil {
		return Context{}, fmt.Errorf("iterating passages: %w", err)
	}
	return Context{Query: text, Passages: rank(scored, idx.topK)}, nil
}

func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
