package retrieval

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryIndex keeps passages in process memory. Suitable for tests and
// single-instance deployments without persistence.
type InMemoryIndex struct {
	mu       sync.RWMutex
	passages []Passage
	topK     int
}

func NewInMemoryIndex(topK int) *InMemoryIndex {
	if topK <= 0 {
		topK = 3
	}
	return &InMemoryIndex{topK: topK}
}

func (idx *InMemoryIndex) Add(_ context.Context, docID, text string) error {
	if docID == "" {
		docID = uuid.NewString()
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, p := range idx.passages {
		if p.DocID == docID {
			idx.passages[i].Text = text
			return nil
		}
	}
	idx.passages = append(idx.passages, Passage{DocID: docID, Text: text})
	return nil
}

func (idx *InMemoryIndex) Query(_ context.Context, text string) (Context, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var scored []Passage
	for _, p := range idx.passages {
		score := lexicalScore(text, p.Text)
		if score <= 0 {
			continue
		}
		scored = append(scored, Passage{DocID: p.DocID, Text: p.Text, Score: score})
	}
	return Context{Query: text, Passages: rank(scored, idx.topK)}, nil
}
