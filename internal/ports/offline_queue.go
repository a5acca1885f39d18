package ports

import "context"

type QueuedAttachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// QueuedProcedure is one procedure captured while offline. Its JSON shape is
// the on-disk queue format.
type QueuedProcedure struct {
	QueueID       string             `json:"queue_id"`
	RepEmail      string             `json:"rep_email"`
	RepName       string             `json:"rep_name"`
	Hospital      string             `json:"hospital"`
	Surgeon       string             `json:"surgeon"`
	ProcedureType string             `json:"procedure_type"`
	Date          string             `json:"date"`
	Revenue       float64            `json:"revenue"`
	Notes         string             `json:"notes"`
	Attachments   []QueuedAttachment `json:"attachments"`
	CreatedAt     string             `json:"created_at"`
}

type OfflineQueue interface {
	Append(ctx context.Context, entry QueuedProcedure) error
	// Load returns the pending entries. A missing or unreadable queue is empty.
	Load(ctx context.Context) ([]QueuedProcedure, error)
	// Remove drops the given entries and keeps everything else, including
	// entries appended after they were loaded. It returns the remaining count.
	Remove(ctx context.Context, processed []QueuedProcedure) (int, error)
}
