package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecentExchangesOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, turn := range []struct{ q, a string }{
		{"first", "one"},
		{"second", "two"},
		{"third", "three"},
	} {
		if err := store.AppendExchange(ctx, "U1", turn.q, turn.a); err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
	}
	if err := store.AppendExchange(ctx, "U2", "other user", "ignored"); err != nil {
		t.Fatalf("AppendExchange: %v", err)
	}

	got, err := store.RecentExchanges(ctx, "U1", 2)
	if err != nil {
		t.Fatalf("RecentExchanges: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	// Most recent two, oldest first.
	if got[0].User != "second" || got[1].User != "third" {
		t.Errorf("order = %q, %q", got[0].User, got[1].User)
	}
}

func TestRecentExchangesEmpty(t *testing.T) {
	store := openTestStore(t)
	got, err := store.RecentExchanges(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("RecentExchanges: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got = %+v", got)
	}
}

func TestSaveFactUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveFact(ctx, "U1", "display name", "Aki"); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := store.SaveFact(ctx, "U1", "display name", "Aki Tanaka"); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := store.SaveFact(ctx, "U1", "grade", "B2"); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}

	facts, err := store.Facts(ctx, "U1")
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("facts = %v", facts)
	}
	if facts[0] != "display name: Aki Tanaka" {
		t.Errorf("facts[0] = %q, want latest value", facts[0])
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error")
	}
}
