package storage

import (
	"context"
	"log/slog"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// FallbackStore tries primary first and writes to secondary when it fails.
// A procedure is never lost because object storage was unreachable.
type FallbackStore struct {
	primary   ports.AttachmentStore
	secondary ports.AttachmentStore
}

var _ ports.AttachmentStore = (*FallbackStore)(nil)

func NewFallbackStore(primary ports.AttachmentStore, secondary ports.AttachmentStore) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary}
}

func (s *FallbackStore) Put(ctx context.Context, name string, body []byte) (string, error) {
	location, err := s.primary.Put(ctx, name, body)
	if err == nil {
		return location, nil
	}

	logging.Warn(
		logging.WithAttrs(ctx, slog.String("component", "storage.fallback")),
		"primary attachment store failed, using local fallback",
		slog.String("name", name),
		slog.Any("err", errs.Loggable(err)),
	)
	return s.secondary.Put(ctx, name, body)
}
