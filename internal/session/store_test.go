package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client), mr
}

func TestRecordAndExists(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "access", 1, "tok-a", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Idempotent re-insert.
	if err := store.Record(ctx, "access", 1, "tok-a", time.Minute); err != nil {
		t.Fatalf("record again: %v", err)
	}

	ok, err := store.Exists(ctx, "access", 1, "tok-a")
	if err != nil || !ok {
		t.Fatalf("expected token active, ok=%v err=%v", ok, err)
	}
	ok, _ = store.Exists(ctx, "access", 1, "tok-b")
	if ok {
		t.Fatal("unknown token must not exist")
	}

	mr.FastForward(2 * time.Minute)
	ok, _ = store.Exists(ctx, "access", 1, "tok-a")
	if ok {
		t.Fatal("token must expire with its TTL")
	}
}

func TestInvalidateAllExceptCurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, tok := range []string{"tok-a", "tok-b"} {
		if err := store.Record(ctx, "access", 9, tok, time.Minute); err != nil {
			t.Fatalf("record %s: %v", tok, err)
		}
	}
	// Another principal's token must be untouched.
	if err := store.Record(ctx, "access", 10, "tok-c", time.Minute); err != nil {
		t.Fatalf("record other principal: %v", err)
	}

	deleted, err := store.InvalidateAll(ctx, "access", 9, "tok-b")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	n, err := store.CountActive(ctx, "access", 9)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly the excluded token to survive, got %d", n)
	}
	ok, _ := store.Exists(ctx, "access", 9, "tok-b")
	if !ok {
		t.Fatal("excluded token must survive")
	}
	ok, _ = store.Exists(ctx, "access", 10, "tok-c")
	if !ok {
		t.Fatal("other principal's token must survive")
	}
}

func TestInvalidateAllNoExclusion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, tok := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, "refresh", 3, tok, time.Minute); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	deleted, err := store.InvalidateAll(ctx, "refresh", 3, "")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
	n, _ := store.CountActive(ctx, "refresh", 3)
	if n != 0 {
		t.Fatalf("expected empty namespace, got %d", n)
	}
}

func TestDeleteSingleToken(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "access", 7, "tok-a", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, "access", 7, "tok-b", time.Minute); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := store.Delete(ctx, "access", 7, "tok-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, "access", 7, "tok-a"); ok {
		t.Fatal("deleted token must not survive")
	}
	if ok, _ := store.Exists(ctx, "access", 7, "tok-b"); !ok {
		t.Fatal("sibling token must survive a single delete")
	}

	// Deleting an unknown token is not an error.
	if err := store.Delete(ctx, "access", 7, "tok-gone"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
