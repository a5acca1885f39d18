package offlinequeue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// JSONFileQueue stores queued procedures as a JSON array in one file.
// Writes go through a temp file and rename.
type JSONFileQueue struct {
	path string
	mu   sync.Mutex
}

var _ ports.OfflineQueue = (*JSONFileQueue)(nil)

func NewJSONFileQueue(path string) *JSONFileQueue {
	if strings.TrimSpace(path) == "" {
		path = "offline_queue.json"
	}
	return &JSONFileQueue{path: path}
}

func (q *JSONFileQueue) Path() string {
	return q.path
}

func (q *JSONFileQueue) Append(ctx context.Context, entry ports.QueuedProcedure) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.readLocked(ctx)
	entries = append(entries, entry)
	return q.writeLocked(entries)
}

func (q *JSONFileQueue) Load(ctx context.Context) ([]ports.QueuedProcedure, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.readLocked(ctx), nil
}

// Remove re-reads the file under the lock so entries appended during a sync
// survive. Entries match by queue_id, or by content when they carry none.
func (q *JSONFileQueue) Remove(ctx context.Context, processed []ports.QueuedProcedure) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.readLocked(ctx)
	if len(processed) == 0 {
		return len(entries), nil
	}

	drop := make(map[string]int, len(processed))
	for _, entry := range processed {
		drop[entryKey(entry)]++
	}

	kept := make([]ports.QueuedProcedure, 0, len(entries))
	for _, entry := range entries {
		key := entryKey(entry)
		if drop[key] > 0 {
			drop[key]--
			continue
		}
		kept = append(kept, entry)
	}

	if len(kept) == 0 {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, errs.Wrap(err, "remove offline queue")
		}
		return 0, nil
	}
	if len(kept) == len(entries) {
		return len(kept), nil
	}
	if err := q.writeLocked(kept); err != nil {
		return len(entries), err
	}
	return len(kept), nil
}

func entryKey(entry ports.QueuedProcedure) string {
	if entry.QueueID != "" {
		return "id:" + entry.QueueID
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "created:" + entry.CreatedAt
	}
	return "json:" + string(raw)
}

// readLocked treats a missing or corrupt file as an empty queue.
func (q *JSONFileQueue) readLocked(ctx context.Context) []ports.QueuedProcedure {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn(ctx, "read offline queue failed", slog.String("path", q.path), slog.Any("err", errs.Loggable(err)))
		}
		return nil
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	var entries []ports.QueuedProcedure
	if err := json.Unmarshal(raw, &entries); err != nil {
		logging.Warn(ctx, "offline queue is not valid json, treating as empty", slog.String("path", q.path), slog.Any("err", errs.Loggable(err)))
		return nil
	}
	return entries
}

func (q *JSONFileQueue) writeLocked(entries []ports.QueuedProcedure) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errs.Wrap(err, "marshal offline queue")
	}

	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create queue dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".offline_queue-*.json")
	if err != nil {
		return errs.Wrap(err, "create temp queue file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errs.Wrap(err, "write temp queue file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errs.Wrap(err, "close temp queue file")
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		_ = os.Remove(tmpName)
		return errs.Wrap(err, "replace offline queue")
	}
	return nil
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}
