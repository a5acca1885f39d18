package repository

import (
	"context"

	"gorm.io/gorm"

	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/ports"
)

type AuditRepository struct {
	db *gorm.DB
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) AppendAudit(ctx context.Context, entry ports.AuditEntry) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.AuditLog{
		Actor:     entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit log")
	}
	return nil
}

func (r *AuditRepository) ListAudit(ctx context.Context, limit int) ([]ports.AuditEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AuditLog{}).Order("created_at desc").Order("audit_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit logs")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.AuditEntry{
			AuditID:   row.AuditID,
			Actor:     row.Actor,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			Details:   row.Details,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}
