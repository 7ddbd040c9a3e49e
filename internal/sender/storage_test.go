package sender

import (
	"context"
	"errors"
	"os"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	tmpfile, err := os.CreateTemp("", "sender_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpfile.Close()

	db, err := bolt.Open(tmpfile.Name(), 0600, nil)
	if err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to open db: %v", err)
	}

	storage, err := NewStorage(db)
	if err != nil {
		db.Close()
		os.Remove(tmpfile.Name())
		t.Fatalf("NewStorage() error = %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmpfile.Name())
	}

	return storage, cleanup
}

func countDefaults(t *testing.T, storage *Storage) int {
	t.Helper()

	senders, err := storage.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	n := 0
	for _, s := range senders {
		if s.IsDefault {
			n++
		}
	}
	return n
}

func TestStorage_CreateValidation(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	tests := []struct {
		name   string
		sender *Sender
	}{
		{name: "missing name", sender: &Sender{Email: "a@b.com"}},
		{name: "missing email", sender: &Sender{Name: "Alice"}},
		{name: "invalid email", sender: &Sender{Name: "Alice", Email: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.Create(ctx, tt.sender)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Create() error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestStorage_DefaultInvariantOnCreate(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	first := &Sender{Name: "First", Email: "first@example.com", IsDefault: true}
	if err := storage.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &Sender{Name: "Second", Email: "second@example.com", IsDefault: true}
	if err := storage.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if n := countDefaults(t, storage); n != 1 {
		t.Errorf("defaults after second create = %d, want 1", n)
	}

	def, err := storage.GetDefault(ctx)
	if err != nil {
		t.Fatalf("GetDefault() error = %v", err)
	}
	if def == nil || def.ID != second.ID {
		t.Errorf("GetDefault() = %+v, want the most recently promoted sender", def)
	}
}

func TestStorage_DefaultInvariantOnUpdate(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	first := &Sender{Name: "First", Email: "first@example.com", IsDefault: true}
	second := &Sender{Name: "Second", Email: "second@example.com"}
	for _, s := range []*Sender{first, second} {
		if err := storage.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	second.IsDefault = true
	if err := storage.Update(ctx, second); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if n := countDefaults(t, storage); n != 1 {
		t.Errorf("defaults after update = %d, want 1", n)
	}

	got, err := storage.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IsDefault {
		t.Error("previous default was not cleared")
	}
}

func TestStorage_GetDefaultNone(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	if err := storage.Create(ctx, &Sender{Name: "Plain", Email: "p@example.com"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	def, err := storage.GetDefault(ctx)
	if err != nil {
		t.Fatalf("GetDefault() error = %v", err)
	}
	if def != nil {
		t.Errorf("GetDefault() = %+v, want nil", def)
	}
}

func TestSender_Address(t *testing.T) {
	s := &Sender{Name: "Alice", Email: "alice@example.com"}
	if got := s.Address(); got != "Alice <alice@example.com>" {
		t.Errorf("Address() = %q", got)
	}

	anon := &Sender{Email: "noname@example.com"}
	if got := anon.Address(); got != "noname@example.com" {
		t.Errorf("Address() = %q", got)
	}
}
