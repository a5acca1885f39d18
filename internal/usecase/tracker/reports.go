package tracker

import (
	"context"
	"errors"
	"io"

	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// ExportProceduresCSV writes the procedures report. The id filter is applied
// on the dataframe after the rep filter ran in the database.
func (s *Service) ExportProceduresCSV(ctx context.Context, w io.Writer, filter ProcedureFilter) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if s.reports == nil {
		return errors.New("report writer is not configured")
	}

	ids := filter.IDs
	filter.IDs = nil
	views, err := s.ListProcedures(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([]ports.ProcedureReportRow, 0, len(views))
	for _, view := range views {
		rows = append(rows, ports.ProcedureReportRow{
			ID:            view.ProcedureID,
			Date:          view.Date,
			RepName:       view.RepName,
			ProcedureType: view.ProcedureType,
			Hospital:      view.Hospital,
			Surgeon:       view.Surgeon,
			Revenue:       view.Revenue,
			Status:        view.Status,
			Commission:    view.Commission,
		})
	}
	return errs.Wrap(s.reports.WriteProcedures(w, rows, ids), "export procedures")
}

// ListAuditLogs returns the newest entries first.
func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]AuditView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	entries, err := s.audit.ListAudit(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AuditView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, AuditView{
			AuditID:   entry.AuditID,
			Actor:     entry.Actor,
			Action:    entry.Action,
			Entity:    entry.Entity,
			EntityID:  entry.EntityID,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}
	return out, nil
}
