package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// LocalStore writes attachments below a directory on the local filesystem.
type LocalStore struct {
	dir string
}

var _ ports.AttachmentStore = (*LocalStore)(nil)

func NewLocalStore(dir string) *LocalStore {
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Put(ctx context.Context, name string, body []byte) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	cleanName, err := safeName(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errs.Wrapf(err, "create upload dir %s", s.dir)
	}

	target := filepath.Join(s.dir, cleanName)
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return "", errs.Wrapf(err, "write attachment %s", target)
	}
	return target, nil
}

// safeName drops any directory part so callers cannot escape the store root.
func safeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", errors.New("attachment name is required")
	}
	return base, nil
}
