package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

const dashboardCacheKey = "dashboard:kpis"

func (s *Service) nowUTC() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
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

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func actorOrSystem(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "system"
	}
	return actor
}

func appendAuditTx(ctx context.Context, repo ports.AuditRepository, actor string, action string, entity string, entityID string, details string, createdAt string) error {
	if err := repo.AppendAudit(ctx, ports.AuditEntry{
		Actor:     actorOrSystem(actor),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: createdAt,
	}); err != nil {
		return errs.Wrapf(err, "append audit %s", action)
	}
	return nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "tracker.service")),
			"invalidate dashboard cache failed",
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) publishBestEffort(ctx context.Context, subject string, payload []byte) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "tracker.service")),
			"publish event failed",
			slog.String("subject", subject),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) recordQueueDepth(depth int) {
	if s.metrics != nil {
		s.metrics.OfflineQueueDepth(depth)
	}
}
