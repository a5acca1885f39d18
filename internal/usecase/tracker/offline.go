package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

var errQueueNotConfigured = errors.New("offline queue is not configured")

// QueueProcedure stores attachments and appends the procedure to the offline
// queue. The database is not touched until SyncQueue.
func (s *Service) QueueProcedure(ctx context.Context, input ProcedureInput) (ports.QueuedProcedure, error) {
	if err := checkContext(ctx); err != nil {
		return ports.QueuedProcedure{}, err
	}
	if s.queue == nil {
		return ports.QueuedProcedure{}, errQueueNotConfigured
	}

	email := normalizeEmail(input.RepEmail)
	if email == "" {
		return ports.QueuedProcedure{}, invalidInput("rep email is required")
	}

	now := s.nowUTC()
	entry := ports.QueuedProcedure{
		QueueID:       uuid.NewString(),
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
	if err := normalizeEntry(&entry, "", now); err != nil {
		return ports.QueuedProcedure{}, err
	}

	attachments, err := s.storeAttachments(ctx, input.Attachments, now)
	if err != nil {
		return ports.QueuedProcedure{}, err
	}
	entry.Attachments = attachments

	if err := s.queue.Append(ctx, entry); err != nil {
		return ports.QueuedProcedure{}, errs.Wrap(err, "append offline queue")
	}

	if entries, err := s.queue.Load(ctx); err == nil {
		s.recordQueueDepth(len(entries))
	}
	return entry, nil
}

func (s *Service) ListQueued(ctx context.Context) ([]ports.QueuedProcedure, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, errQueueNotConfigured
	}
	return s.queue.Load(ctx)
}

// SyncQueue replays queued procedures in order, one transaction per entry.
// Entries that fail stay in the queue.
func (s *Service) SyncQueue(ctx context.Context) (SyncResult, error) {
	if err := checkContext(ctx); err != nil {
		return SyncResult{}, err
	}
	if s.queue == nil {
		return SyncResult{}, errQueueNotConfigured
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "tracker.sync"))

	entries, err := s.queue.Load(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	processed := make([]ports.QueuedProcedure, 0, len(entries))
	for _, entry := range entries {
		saved, amount, err := s.syncEntry(ctx, entry)
		if err != nil {
			result.Failed++
			logging.Warn(
				logCtx,
				"sync offline entry failed",
				slog.String("queue_id", entry.QueueID),
				slog.String("rep_email", entry.RepEmail),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		result.Processed++
		processed = append(processed, entry)
		s.afterProcedureLogged(ctx, saved, amount, SourceOffline)
	}

	remaining, err := s.queue.Remove(ctx, processed)
	if err != nil {
		return result, errs.Wrap(err, "remove synced entries from offline queue")
	}
	s.recordQueueDepth(remaining)

	logging.Info(logCtx, "offline queue synced", slog.Int("processed", result.Processed), slog.Int("failed", result.Failed))
	return result, nil
}

func (s *Service) syncEntry(ctx context.Context, entry ports.QueuedProcedure) (ports.Procedure, float64, error) {
	now := s.nowUTC()

	email := normalizeEmail(entry.RepEmail)
	if email == "" {
		return ports.Procedure{}, 0, invalidInput("queued entry %s has no rep email", entry.QueueID)
	}

	var saved ports.Procedure
	var amount float64
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		user, rep, err := s.resolveRepTx(txCtx, email, entry.RepName, true)
		if err != nil {
			return err
		}
		if err := normalizeEntry(&entry, user.FullName, now); err != nil {
			return err
		}
		saved, amount, err = s.persistProcedureTx(txCtx, rep, entry, "sync_offline", now)
		return err
	})
	return saved, amount, err
}
