package storage

import (
	"os"
	"path/filepath"
	"testing"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

func TestStorage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	t.Run("Empty", func(t *testing.T) {
		users, err := store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("expected no users, got %d", len(users))
		}
	})

	t.Run("Users", func(t *testing.T) {
		users := []models.User{
			{ID: "u2", FullName: "Bob", Email: "bob@example.com"},
			{ID: "u1", FullName: "Alice", ProfilePic: "https://example.com/a.png"},
		}
		if err := store.UpsertUsers(users); err != nil {
			t.Fatalf("UpsertUsers failed: %v", err)
		}

		list, err := store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 users, got %d", len(list))
		}
		if list[0].FullName != "Alice" {
			t.Errorf("expected Alice first, got %s", list[0].FullName)
		}
		if list[0].ProfilePic != users[1].ProfilePic {
			t.Errorf("expected ProfilePic %s, got %s", users[1].ProfilePic, list[0].ProfilePic)
		}

		u, err := store.GetUser("u2")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if u.Email != "bob@example.com" {
			t.Errorf("expected Email bob@example.com, got %s", u.Email)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		if err := store.UpsertUsers([]models.User{{ID: "u3", FullName: "Carol"}}); err != nil {
			t.Fatalf("UpsertUsers failed: %v", err)
		}

		list, err := store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "u3" {
			t.Errorf("expected only u3, got %+v", list)
		}

		if _, err := store.GetUser("u1"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for dropped user, got %v", err)
		}
	})

	t.Run("Reopen", func(t *testing.T) {
		if err := store.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		store, err = NewBboltStorage(dbPath)
		if err != nil {
			t.Fatalf("failed to reopen storage: %v", err)
		}

		list, err := store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected cached directory to survive reopen, got %d users", len(list))
		}
	})
}
