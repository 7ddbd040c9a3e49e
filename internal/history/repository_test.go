package history

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	return NewRepository(db)
}

func testRun(sender string, started time.Time) *Run {
	return &Run{
		Sender:       sender,
		GroupName:    "customers",
		TemplateName: "welcome",
		Total:        2,
		Success:      1,
		Failed:       1,
		Delay:        500 * time.Millisecond,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Second),
		Items: []RunItem{
			{Position: 1, Recipient: "a@example.com", Subject: "Hello A", MessageID: "<1@example.com>", Success: true},
			{Position: 2, Recipient: "b@example.com", Subject: "Hello B", Success: false, Error: "mailbox unavailable"},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	repo := setupTestRepo(t)

	run := testRun("Alice <alice@example.com>", time.Now())
	if err := repo.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	if run.ID == "" {
		t.Fatal("RecordRun should assign an ID")
	}

	got, err := repo.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for recorded run")
	}

	if got.Total != 2 || got.Success != 1 || got.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", got.Total, got.Success, got.Failed)
	}

	if got.Delay != 500*time.Millisecond {
		t.Errorf("Delay = %v, want 500ms", got.Delay)
	}

	if len(got.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(got.Items))
	}

	if got.Items[0].Recipient != "a@example.com" || !got.Items[0].Success {
		t.Errorf("unexpected first item: %+v", got.Items[0])
	}

	if got.Items[1].Error != "mailbox unavailable" {
		t.Errorf("Items[1].Error = %q, want %q", got.Items[1].Error, "mailbox unavailable")
	}
}

func TestGetRunNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	got, err := repo.GetRun("missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown run, got %+v", got)
	}
}

func TestListRuns(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := testRun("Alice <alice@example.com>", base.Add(time.Duration(i)*time.Minute))
		if err := repo.RecordRun(run); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}
	other := testRun("Bob <bob@example.com>", base.Add(time.Hour))
	if err := repo.RecordRun(other); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	t.Run("all, newest first", func(t *testing.T) {
		runs, total, err := repo.ListRuns(ListFilter{})
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if total != 4 || len(runs) != 4 {
			t.Fatalf("total = %d, len = %d, want 4/4", total, len(runs))
		}
		if runs[0].Sender != "Bob <bob@example.com>" {
			t.Errorf("first run should be the newest, got sender %q", runs[0].Sender)
		}
		if len(runs[0].Items) != 0 {
			t.Error("listing should not load items")
		}
	})

	t.Run("filter by sender", func(t *testing.T) {
		runs, total, err := repo.ListRuns(ListFilter{Sender: "Alice <alice@example.com>"})
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if total != 3 || len(runs) != 3 {
			t.Errorf("total = %d, len = %d, want 3/3", total, len(runs))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		runs, total, err := repo.ListRuns(ListFilter{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		if len(runs) != 2 {
			t.Errorf("len = %d, want 2", len(runs))
		}
	})
}
