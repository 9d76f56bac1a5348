// Package retrieval grounds assistant replies in stored passages.
package retrieval

import "context"

// Passage is a single retrieved snippet with its relevance score.
type Passage struct {
	DocID string  `json:"doc_id"`
	Text  string  `json:"passage"`
	Score float64 `json:"score"`
}

// Context is the retrieval result handed to generation.
type Context struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
}

// Client answers a retrieval query. Implementations must be safe for
// concurrent use.
type Client interface {
	Query(ctx context.Context, text string) (Context, error)
}

// Seeder is implemented by backends that accept new passages at runtime.
type Seeder interface {
	Add(ctx context.Context, docID, text string) error
}
