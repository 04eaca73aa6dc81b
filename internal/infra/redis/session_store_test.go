package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionStorePersistsAnswers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	store := NewSessionStore(client, time.Minute)

	session, created, err := store.GetOrCreate(ctx, "survey-1", "sess-1")
	if err != nil || !created {
		t.Fatalf("expected fresh session, created=%v err=%v", created, err)
	}

	if err := store.SaveAnswer(ctx, session, "color", "red"); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if err := store.SaveAnswer(ctx, session, "tags", []any{"a", "b"}); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if !mr.Exists("session:sess-1:answers") {
		t.Fatalf("expected answers hash")
	}

	// A fresh store (new instance, empty local map) rehydrates from Redis.
	other := NewSessionStore(client, time.Minute)
	restored, created, err := other.GetOrCreate(ctx, "survey-1", "sess-1")
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if created {
		t.Fatalf("resumed session must not report created")
	}
	answers := restored.Snapshot()
	if answers["color"] != "red" {
		t.Fatalf("restored answers = %v", answers)
	}
	tags, ok := answers["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Fatalf("restored list answer = %v", answers["tags"])
	}
}

func TestSessionStoreClearsAnswerOnNil(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	session, _, _ := store.GetOrCreate(ctx, "survey-1", "sess-1")

	if err := store.SaveAnswer(ctx, session, "color", "red"); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if err := store.SaveAnswer(ctx, session, "color", nil); err != nil {
		t.Fatalf("clear answer: %v", err)
	}
	if mr.Exists("session:sess-1:answers") {
		t.Fatalf("expected empty hash to disappear")
	}
}

func TestSessionStoreDeleteLifecycle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	session, _, _ := store.GetOrCreate(ctx, "survey-1", "sess-1")
	if err := store.SaveAnswer(ctx, session, "color", "red"); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	// Idle with answers: local state released, Redis kept for resume.
	store.DeleteIfEmpty(ctx, "sess-1")
	if _, ok := store.Get("sess-1"); ok {
		t.Fatalf("expected local session released")
	}
	if !mr.Exists("session:sess-1:answers") {
		t.Fatalf("expected answers kept for resumption")
	}

	// Completion deletes everything.
	if _, _, err := store.GetOrCreate(ctx, "survey-1", "sess-1"); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	store.Delete(ctx, "sess-1")
	if _, ok := store.Get("sess-1"); ok {
		t.Fatalf("expected session gone after delete")
	}
	if mr.Exists("session:sess-1:answers") {
		t.Fatalf("expected answers removed after delete")
	}
}
