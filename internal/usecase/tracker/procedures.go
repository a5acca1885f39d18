package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/domain/commission"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

type procedureEvent struct {
	ProcedureID   uint64  `json:"procedure_id"`
	RepID         uint64  `json:"rep_id"`
	ProcedureType string  `json:"procedure_type"`
	Hospital      string  `json:"hospital"`
	Date          string  `json:"date"`
	Revenue       float64 `json:"revenue"`
	Commission    float64 `json:"commission"`
	Source        string  `json:"source"`
}

// LogProcedure persists a procedure together with its attachments and the
// commission computed from the current rule snapshot.
func (s *Service) LogProcedure(ctx context.Context, input ProcedureInput) (LogResult, error) {
	if err := checkContext(ctx); err != nil {
		return LogResult{}, err
	}

	email := normalizeEmail(input.RepEmail)
	if email == "" {
		return LogResult{}, invalidInput("rep email is required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return LogResult{}, err
	}

	now := s.nowUTC()
	entry := ports.QueuedProcedure{
		RepEmail:      email,
		RepName:       input.RepName,
		Hospital:      input.Hospital,
		Surgeon:       input.Surgeon,
		ProcedureType: input.ProcedureType,
		Date:          input.Date,
		Revenue:       input.Revenue,
		Notes:         input.Notes,
		CreatedAt:     formatTime(now),
	}
	if err := normalizeEntry(&entry, user.FullName, now); err != nil {
		return LogResult{}, err
	}

	entry.Attachments, err = s.storeAttachments(ctx, input.Attachments, now)
	if err != nil {
		return LogResult{}, err
	}

	var saved ports.Procedure
	var amount float64
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		_, rep, err := s.resolveRepTx(txCtx, email, "", false)
		if err != nil {
			return err
		}
		saved, amount, err = s.persistProcedureTx(txCtx, rep, entry, "create_procedure", now)
		return err
	}); err != nil {
		return LogResult{}, err
	}

	s.afterProcedureLogged(ctx, saved, amount, SourceOnline)

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "tracker.service")),
		"procedure logged",
		slog.Uint64("procedure_id", saved.ProcedureID),
		slog.Float64("commission", amount),
	)
	return LogResult{ProcedureID: saved.ProcedureID, Commission: amount}, nil
}

// persistProcedureTx writes the procedure, its attachment rows, the
// commission snapshot and the audit entry. It must run inside a transaction.
func (s *Service) persistProcedureTx(ctx context.Context, rep ports.Rep, entry ports.QueuedProcedure, action string, now time.Time) (ports.Procedure, float64, error) {
	nowText := formatTime(now)

	saved, err := s.procedures.CreateProcedure(ctx, ports.Procedure{
		RepID:         rep.RepID,
		RepName:       entry.RepName,
		Hospital:      entry.Hospital,
		Surgeon:       entry.Surgeon,
		ProcedureType: entry.ProcedureType,
		Date:          entry.Date,
		Revenue:       entry.Revenue,
		Notes:         entry.Notes,
		Status:        StatusPending,
		CreatedAt:     nowText,
	})
	if err != nil {
		return ports.Procedure{}, 0, err
	}

	for _, attachment := range entry.Attachments {
		if _, err := s.procedures.AddAttachment(ctx, ports.Attachment{
			ProcedureID: saved.ProcedureID,
			Filename:    attachment.Filename,
			Location:    attachment.Path,
			UploadedAt:  nowText,
		}); err != nil {
			return ports.Procedure{}, 0, err
		}
	}

	rules, err := s.loadRuleSnapshot(ctx)
	if err != nil {
		return ports.Procedure{}, 0, err
	}
	amount := s.evaluator.Evaluate(domainProcedure(saved), rules, now)

	if _, err := s.procedures.SaveCommission(ctx, ports.Commission{
		ProcedureID:  saved.ProcedureID,
		RepID:        rep.RepID,
		Amount:       amount,
		CalculatedAt: nowText,
	}); err != nil {
		return ports.Procedure{}, 0, err
	}

	details, err := json.Marshal(entry)
	if err != nil {
		return ports.Procedure{}, 0, errs.Wrap(err, "encode audit details")
	}
	if err := appendAuditTx(ctx, s.audit, entry.RepEmail, action, "procedure", strconv.FormatUint(saved.ProcedureID, 10), string(details), nowText); err != nil {
		return ports.Procedure{}, 0, err
	}
	return saved, amount, nil
}

func (s *Service) afterProcedureLogged(ctx context.Context, saved ports.Procedure, amount float64, source string) {
	s.invalidateDashboard(ctx)

	payload, err := json.Marshal(procedureEvent{
		ProcedureID:   saved.ProcedureID,
		RepID:         saved.RepID,
		ProcedureType: saved.ProcedureType,
		Hospital:      saved.Hospital,
		Date:          saved.Date,
		Revenue:       saved.Revenue,
		Commission:    amount,
		Source:        source,
	})
	if err == nil {
		s.publishBestEffort(ctx, ports.SubjectProcedureLogged, payload)
	}

	if s.metrics != nil {
		s.metrics.ProcedureLogged(source, saved.Revenue, amount)
	}
}

// storeAttachments uploads files before any transaction opens, naming each
// object <unix>_<basename>. Repeated basenames within one call get a -N
// suffix before the extension so no upload overwrites another.
func (s *Service) storeAttachments(ctx context.Context, uploads []AttachmentUpload, now time.Time) ([]ports.QueuedAttachment, error) {
	if len(uploads) == 0 {
		return []ports.QueuedAttachment{}, nil
	}
	if s.attachments == nil {
		return nil, errors.New("attachment store is not configured")
	}

	out := make([]ports.QueuedAttachment, 0, len(uploads))
	used := make(map[string]struct{}, len(uploads))
	for _, upload := range uploads {
		base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(upload.Filename), "\\", "/"))
		if base == "" || base == "." || base == "/" || base == ".." {
			return nil, invalidInput("attachment filename is required")
		}
		name := uniqueAttachmentName(fmt.Sprintf("%d_%s", now.Unix(), base), used)
		location, err := s.attachments.Put(ctx, name, upload.Body)
		if err != nil {
			return nil, errs.Wrapf(err, "store attachment %s", name)
		}
		out = append(out, ports.QueuedAttachment{Filename: name, Path: location})
	}
	return out, nil
}

func uniqueAttachmentName(name string, used map[string]struct{}) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}

// normalizeEntry trims and validates procedure fields in place.
func normalizeEntry(entry *ports.QueuedProcedure, defaultRepName string, now time.Time) error {
	entry.RepEmail = normalizeEmail(entry.RepEmail)
	entry.RepName = strings.TrimSpace(entry.RepName)
	if entry.RepName == "" {
		entry.RepName = strings.TrimSpace(defaultRepName)
	}
	entry.Hospital = strings.TrimSpace(entry.Hospital)
	entry.Surgeon = strings.TrimSpace(entry.Surgeon)
	entry.ProcedureType = strings.TrimSpace(entry.ProcedureType)
	entry.Notes = strings.TrimSpace(entry.Notes)
	entry.Date = strings.TrimSpace(entry.Date)

	if entry.Hospital == "" {
		return invalidInput("hospital is required")
	}
	if entry.ProcedureType == "" {
		return invalidInput("procedure type is required")
	}
	if entry.Date == "" {
		entry.Date = now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, entry.Date); err != nil {
		return invalidInput("date must be YYYY-MM-DD, got %q", entry.Date)
	}
	if math.IsNaN(entry.Revenue) || math.IsInf(entry.Revenue, 0) || entry.Revenue < 0 {
		return invalidInput("revenue must be a non-negative number")
	}
	if entry.Attachments == nil {
		entry.Attachments = []ports.QueuedAttachment{}
	}
	return nil
}

// ListProcedures orders by creation time, newest first.
func (s *Service) ListProcedures(ctx context.Context, filter ProcedureFilter) ([]ProcedureView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	repoFilter := ports.ProcedureFilter{IDs: filter.IDs, Limit: filter.Limit}
	if email := normalizeEmail(filter.RepEmail); email != "" {
		user, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		rep, err := s.users.GetRepByUserID(ctx, user.UserID)
		if err != nil {
			if errors.Is(err, ports.ErrRepNotFound) {
				return []ProcedureView{}, nil
			}
			return nil, err
		}
		repoFilter.RepID = rep.RepID
	}

	rows, err := s.procedures.ListProcedures(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	return s.procedureViews(ctx, rows)
}

func (s *Service) GetProcedure(ctx context.Context, procedureID uint64) (ProcedureDetail, error) {
	if err := checkContext(ctx); err != nil {
		return ProcedureDetail{}, err
	}

	row, err := s.procedures.GetProcedure(ctx, procedureID)
	if err != nil {
		return ProcedureDetail{}, err
	}
	attachments, err := s.procedures.ListAttachments(ctx, procedureID)
	if err != nil {
		return ProcedureDetail{}, err
	}

	detail := ProcedureDetail{
		Procedure:   procedureView(row, 0),
		Attachments: make([]AttachmentView, 0, len(attachments)),
	}
	if stored, err := s.procedures.GetCommission(ctx, procedureID); err == nil {
		detail.Procedure.Commission = stored.Amount
		detail.CalculatedAt = stored.CalculatedAt
	} else if !errors.Is(err, ports.ErrCommissionNotFound) {
		return ProcedureDetail{}, err
	}
	for _, attachment := range attachments {
		detail.Attachments = append(detail.Attachments, AttachmentView{
			AttachmentID: attachment.AttachmentID,
			Filename:     attachment.Filename,
			Location:     attachment.Location,
			UploadedAt:   attachment.UploadedAt,
		})
	}
	return detail, nil
}

func (s *Service) procedureViews(ctx context.Context, rows []ports.Procedure) ([]ProcedureView, error) {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProcedureID)
	}
	commissions, err := s.procedures.ListCommissions(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ProcedureView, 0, len(rows))
	for _, row := range rows {
		out = append(out, procedureView(row, commissions[row.ProcedureID].Amount))
	}
	return out, nil
}

func procedureView(row ports.Procedure, amount float64) ProcedureView {
	return ProcedureView{
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
		Commission:    amount,
		CreatedAt:     row.CreatedAt,
	}
}

func domainProcedure(row ports.Procedure) commission.Procedure {
	return commission.Procedure{
		ID:            row.ProcedureID,
		RepID:         row.RepID,
		RepName:       row.RepName,
		Hospital:      row.Hospital,
		Surgeon:       row.Surgeon,
		ProcedureType: row.ProcedureType,
		Date:          row.Date,
		Revenue:       row.Revenue,
		Notes:         row.Notes,
		Status:        row.Status,
	}
}
