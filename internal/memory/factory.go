package memory

import (
	"context"
	"log"
)

// NewStore picks a backend from the database URL: empty means in-memory,
// anything else is treated as a PostgreSQL DSN.
func NewStore(ctx context.Context, databaseURL string, retentionLimit int) (Store, error) {
	if databaseURL == "" {
		log.Printf("memory: no DATABASE_URL, using in-memory store")
		return NewInMemoryStore(retentionLimit), nil
	}
	store, err := NewPostgresStore(ctx, databaseURL, retentionLimit)
	if err != nil {
		return nil, err
	}
	log.Printf("memory: using postgres store")
	return store, nil
}
