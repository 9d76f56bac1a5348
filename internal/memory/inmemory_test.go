package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryStoreAppendAndHistory(t *testing.T) {
	store := NewInMemoryStore(20)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Append(ctx, Turn{
			SessionID: "sess-1",
			Role:      RoleUser,
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := store.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	for i, turn := range history {
		want := fmt.Sprintf("message %d", i)
		if turn.Text != want {
			t.Errorf("turn %d: got %q, want %q", i, turn.Text, want)
		}
		if turn.ID == "" {
			t.Errorf("turn %d: missing generated id", i)
		}
	}
}

func TestInMemoryStoreRetentionEvictsOldest(t *testing.T) {
	store := NewInMemoryStore(20)
	ctx := context.Background()

	for i := 0; i < 21; i++ {
		err := store.Append(ctx, Turn{
			SessionID: "sess-1",
			Role:      RoleUser,
			Text:      fmt.Sprintf("message %d", i),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := store.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("expected retention limit of 20 turns, got %d", len(history))
	}
	if history[0].Text != "message 1" {
		t.Errorf("oldest turn should be evicted: got %q, want %q", history[0].Text, "message 1")
	}
	if history[len(history)-1].Text != "message 20" {
		t.Errorf("newest turn missing: got %q", history[len(history)-1].Text)
	}
}

func TestInMemoryStoreSessionIsolation(t *testing.T) {
	store := NewInMemoryStore(20)
	ctx := context.Background()

	if err := store.Append(ctx, Turn{SessionID: "a", Role: RoleUser, Text: "hello from a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, Turn{SessionID: "b", Role: RoleUser, Text: "hello from b"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	historyA, err := store.History(ctx, "a")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(historyA) != 1 || historyA[0].Text != "hello from a" {
		t.Errorf("session a history corrupted: %+v", historyA)
	}

	historyB, err := store.History(ctx, "b")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(historyB) != 1 || historyB[0].Text != "hello from b" {
		t.Errorf("session b history corrupted: %+v", historyB)
	}
}

func TestInMemoryStoreHistoryReturnsCopy(t *testing.T) {
	store := NewInMemoryStore(20)
	ctx := context.Background()

	if err := store.Append(ctx, Turn{SessionID: "a", Role: RoleUser, Text: "original"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	history, err := store.History(ctx, "a")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	history[0].Text = "mutated"

	again, err := store.History(ctx, "a")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if again[0].Text != "original" {
		t.Errorf("History should return a copy: got %q", again[0].Text)
	}
}
