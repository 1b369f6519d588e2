package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "directory.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteEnsureUserOnlyIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	user := &models.Identity{ID: "u1", DisplayName: "Ana", Email: "ana@example.com", Provider: "google"}
	created, err := s.EnsureUser(ctx, user)
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}

	created, err = s.EnsureUser(ctx, &models.Identity{ID: "u1", DisplayName: "Someone else"})
	if err != nil || created {
		t.Fatalf("expected no overwrite, created=%v err=%v", created, err)
	}

	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Ana" || got.Provider != "google" {
		t.Fatalf("user was overwritten: %+v", got)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteSearchUsersIsByteWise(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	for _, u := range []models.Identity{
		{ID: "1", DisplayName: "Alice"},
		{ID: "2", DisplayName: "Alicia"},
		{ID: "3", DisplayName: "alice"},
		{ID: "4", DisplayName: "Bob"},
	} {
		u := u
		if _, err := s.EnsureUser(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.SearchUsers(ctx, "Ali", "Ali"+HighSentinel, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ID != "1" || entries[1].ID != "2" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	entries, err = s.SearchUsers(ctx, "Ali", "Ali"+HighSentinel, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("limit not applied: %+v", entries)
	}
}
