package offlinequeue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"orthotracker/internal/ports"
)

func TestJSONFileQueueAppendLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	queue := NewJSONFileQueue(path)
	ctx := context.Background()

	entries, err := queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Load() on missing file len = %d", len(entries))
	}

	for _, id := range []string{"a", "b"} {
		if err := queue.Append(ctx, ports.QueuedProcedure{
			QueueID:       id,
			RepEmail:      "ann@example.com",
			ProcedureType: "Other",
			Revenue:       1000,
			Attachments:   []ports.QueuedAttachment{{Filename: "scan.png", Path: "/tmp/scan.png"}},
		}); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	entries, err = queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 2 || entries[0].QueueID != "a" || entries[1].Attachments[0].Filename != "scan.png" {
		t.Fatalf("Load() = %#v", entries)
	}

	remaining, err := queue.Remove(ctx, entries[:1])
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if remaining != 1 {
		t.Fatalf("Remove() remaining = %d, want 1", remaining)
	}
	entries, err = queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 || entries[0].QueueID != "b" {
		t.Fatalf("Load() after remove = %#v", entries)
	}

	if remaining, err := queue.Remove(ctx, entries); err != nil || remaining != 0 {
		t.Fatalf("Remove(all) = %d, %v", remaining, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("queue file should be removed, stat err = %v", err)
	}
}

func TestJSONFileQueueCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt queue: %v", err)
	}

	queue := NewJSONFileQueue(path)
	entries, err := queue.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Load() len = %d, want 0", len(entries))
	}

	if err := queue.Append(context.Background(), ports.QueuedProcedure{QueueID: "fresh"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	entries, _ = queue.Load(context.Background())
	if len(entries) != 1 || entries[0].QueueID != "fresh" {
		t.Fatalf("Load() after append = %#v", entries)
	}
}

func TestJSONFileQueueRemoveKeepsLaterAppends(t *testing.T) {
	queue := NewJSONFileQueue(filepath.Join(t.TempDir(), "offline_queue.json"))
	ctx := context.Background()

	if err := queue.Append(ctx, ports.QueuedProcedure{QueueID: "synced"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	snapshot, err := queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := queue.Append(ctx, ports.QueuedProcedure{QueueID: "late"}); err != nil {
		t.Fatalf("Append(late) error = %v", err)
	}

	remaining, err := queue.Remove(ctx, snapshot)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	entries, err := queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if remaining != 1 || len(entries) != 1 || entries[0].QueueID != "late" {
		t.Fatalf("after Remove() remaining=%d entries=%#v", remaining, entries)
	}
}

func TestJSONFileQueueRemoveMatchesEntriesWithoutID(t *testing.T) {
	queue := NewJSONFileQueue(filepath.Join(t.TempDir(), "offline_queue.json"))
	ctx := context.Background()

	legacy := ports.QueuedProcedure{RepEmail: "ann@example.com", Hospital: "Mater", CreatedAt: "2025-03-14T08:00:00Z"}
	other := ports.QueuedProcedure{RepEmail: "bob@example.com", Hospital: "Mater", CreatedAt: "2025-03-14T09:00:00Z"}
	for _, entry := range []ports.QueuedProcedure{legacy, other} {
		if err := queue.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	snapshot, err := queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	remaining, err := queue.Remove(ctx, snapshot[:1])
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	entries, err := queue.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if remaining != 1 || len(entries) != 1 || entries[0].RepEmail != "bob@example.com" {
		t.Fatalf("after Remove() remaining=%d entries=%#v", remaining, entries)
	}
}
