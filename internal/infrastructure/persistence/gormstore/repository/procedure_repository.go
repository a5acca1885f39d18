package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/ports"
)

type ProcedureRepository struct {
	db *gorm.DB
}

var _ ports.ProcedureRepository = (*ProcedureRepository)(nil)

func NewProcedureRepository(db *gorm.DB) *ProcedureRepository {
	return &ProcedureRepository{db: db}
}

func (r *ProcedureRepository) CreateProcedure(ctx context.Context, procedure ports.Procedure) (ports.Procedure, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Procedure{}, err
	}

	row := model.Procedure{
		RepID:         procedure.RepID,
		RepName:       procedure.RepName,
		Hospital:      procedure.Hospital,
		Surgeon:       procedure.Surgeon,
		ProcedureType: procedure.ProcedureType,
		Date:          procedure.Date,
		Revenue:       procedure.Revenue,
		Notes:         procedure.Notes,
		Status:        procedure.Status,
		CreatedAt:     procedure.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Procedure{}, errs.Wrap(err, "insert procedure")
	}
	return mapProcedure(row), nil
}

func (r *ProcedureRepository) GetProcedure(ctx context.Context, procedureID uint64) (ports.Procedure, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Procedure{}, err
	}

	var row model.Procedure
	if err := db.Where("procedure_id = ?", procedureID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Procedure{}, ports.ErrProcedureNotFound
		}
		return ports.Procedure{}, errs.Wrap(err, "query procedure")
	}
	return mapProcedure(row), nil
}

func (r *ProcedureRepository) ListProcedures(ctx context.Context, filter ports.ProcedureFilter) ([]ports.Procedure, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Procedure{})
	if filter.RepID > 0 {
		query = query.Where("rep_id = ?", filter.RepID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("procedure_id IN ?", filter.IDs)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Procedure
	if err := query.Order("created_at desc").Order("procedure_id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query procedures")
	}
	return mapProcedures(rows), nil
}

func (r *ProcedureRepository) ListRecentProcedures(ctx context.Context, limit int) ([]ports.Procedure, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Procedure{}).Order("date desc").Order("procedure_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Procedure
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query recent procedures")
	}
	return mapProcedures(rows), nil
}

func (r *ProcedureRepository) ProcedureStats(ctx context.Context) (ports.ProcedureStats, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ProcedureStats{}, err
	}

	var totals struct {
		Total        int64
		TotalRevenue float64
	}
	if err := db.Model(&model.Procedure{}).
		Select("count(*) AS total, coalesce(sum(revenue), 0) AS total_revenue").
		Scan(&totals).Error; err != nil {
		return ports.ProcedureStats{}, errs.WithStack(errs.Wrap(err, "aggregate procedures"))
	}

	var pending int64
	if err := db.Model(&model.Procedure{}).Where("status = ?", "pending").Count(&pending).Error; err != nil {
		return ports.ProcedureStats{}, errs.WithStack(errs.Wrap(err, "count pending procedures"))
	}

	var commissions struct {
		TotalAmount float64
	}
	if err := db.Model(&model.Commission{}).
		Select("coalesce(sum(amount), 0) AS total_amount").
		Scan(&commissions).Error; err != nil {
		return ports.ProcedureStats{}, errs.WithStack(errs.Wrap(err, "aggregate commissions"))
	}

	var byType []struct {
		ProcedureType string
		Count         int64
	}
	if err := db.Model(&model.Procedure{}).
		Select("procedure_type, count(*) AS count").
		Group("procedure_type").
		Order("count desc").
		Order("procedure_type asc").
		Scan(&byType).Error; err != nil {
		return ports.ProcedureStats{}, errs.WithStack(errs.Wrap(err, "count procedures by type"))
	}

	stats := ports.ProcedureStats{
		Total:           totals.Total,
		TotalRevenue:    totals.TotalRevenue,
		Pending:         pending,
		TotalCommission: commissions.TotalAmount,
		ByType:          make([]ports.ProcedureTypeCount, 0, len(byType)),
	}
	for _, item := range byType {
		stats.ByType = append(stats.ByType, ports.ProcedureTypeCount{
			ProcedureType: item.ProcedureType,
			Count:         item.Count,
		})
	}
	return stats, nil
}

func (r *ProcedureRepository) AddAttachment(ctx context.Context, attachment ports.Attachment) (ports.Attachment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Attachment{}, err
	}

	row := model.Attachment{
		ProcedureID: attachment.ProcedureID,
		Filename:    attachment.Filename,
		Location:    attachment.Location,
		UploadedAt:  attachment.UploadedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Attachment{}, errs.Wrap(err, "insert attachment")
	}
	return mapAttachment(row), nil
}

func (r *ProcedureRepository) ListAttachments(ctx context.Context, procedureID uint64) ([]ports.Attachment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Attachment
	if err := db.Where("procedure_id = ?", procedureID).Order("attachment_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query attachments")
	}

	items := make([]ports.Attachment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAttachment(row))
	}
	return items, nil
}

func (r *ProcedureRepository) SaveCommission(ctx context.Context, commission ports.Commission) (ports.Commission, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Commission{}, err
	}

	row := model.Commission{
		ProcedureID:  commission.ProcedureID,
		RepID:        commission.RepID,
		Amount:       commission.Amount,
		CalculatedAt: commission.CalculatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "procedure_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rep_id", "amount", "calculated_at"}),
	}).Create(&row).Error; err != nil {
		return ports.Commission{}, errs.Wrap(err, "upsert commission")
	}

	return getCommissionByProcedure(db, commission.ProcedureID)
}

func (r *ProcedureRepository) GetCommission(ctx context.Context, procedureID uint64) (ports.Commission, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Commission{}, err
	}
	return getCommissionByProcedure(db, procedureID)
}

func (r *ProcedureRepository) ListCommissions(ctx context.Context, procedureIDs []uint64) (map[uint64]ports.Commission, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	out := make(map[uint64]ports.Commission, len(procedureIDs))
	if len(procedureIDs) == 0 {
		return out, nil
	}

	var rows []model.Commission
	if err := db.Where("procedure_id IN ?", procedureIDs).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query commissions")
	}
	for _, row := range rows {
		out[row.ProcedureID] = mapCommission(row)
	}
	return out, nil
}

func getCommissionByProcedure(db *gorm.DB, procedureID uint64) (ports.Commission, error) {
	var row model.Commission
	if err := db.Where("procedure_id = ?", procedureID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Commission{}, ports.ErrCommissionNotFound
		}
		return ports.Commission{}, errs.Wrap(err, "query commission")
	}
	return mapCommission(row), nil
}

func mapProcedures(rows []model.Procedure) []ports.Procedure {
	items := make([]ports.Procedure, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapProcedure(row))
	}
	return items
}

func mapProcedure(row model.Procedure) ports.Procedure {
	return ports.Procedure{
		ProcedureID:   row.ProcedureID,
		RepID:         row.RepID,
		RepName:       row.RepName,
		Hospital:      row.Hospital,
		Surgeon:       row.Surgeon,
		ProcedureType: row.ProcedureType,
		Date:          row.Date,
		Revenue:       row.Revenue,
		Notes:         row.Notes,
		Status:        row.Status,
		CreatedAt:     row.CreatedAt,
	}
}

func mapAttachment(row model.Attachment) ports.Attachment {
	return ports.Attachment{
		AttachmentID: row.AttachmentID,
		ProcedureID:  row.ProcedureID,
		Filename:     row.Filename,
		Location:     row.Location,
		UploadedAt:   row.UploadedAt,
	}
}

func mapCommission(row model.Commission) ports.Commission {
	return ports.Commission{
		CommissionID: row.CommissionID,
		ProcedureID:  row.ProcedureID,
		RepID:        row.RepID,
		Amount:       row.Amount,
		CalculatedAt: row.CalculatedAt,
	}
}
