package ports

import "context"

type AuditEntry struct {
	AuditID   uint64
	Actor     string
	Action    string
	Entity    string
	EntityID  string
	Details   string
	CreatedAt string
}

type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// ListAudit returns the newest entries first.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
