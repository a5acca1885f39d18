package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestLocalStorePutWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocalStore(dir)

	location, err := store.Put(context.Background(), "1700000000_xray.png", []byte("png"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if location != filepath.Join(dir, "1700000000_xray.png") {
		t.Fatalf("Put() location = %q", location)
	}
	raw, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(raw) != "png" {
		t.Fatalf("stored body = %q", raw)
	}
}

func TestLocalStoreStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	location, err := store.Put(context.Background(), "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if filepath.Dir(location) != dir {
		t.Fatalf("Put() escaped store root: %q", location)
	}

	if _, err := store.Put(context.Background(), "  ", nil); err == nil {
		t.Fatalf("Put() expected error for blank name")
	}
}

type fakePutter struct {
	key  string
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *params.Key
	raw, _ := io.ReadAll(params.Body)
	f.body = string(raw)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePutUsesDatedKey(t *testing.T) {
	putter := &fakePutter{}
	store := newS3Store(putter, "ortho-bucket")
	store.now = func() time.Time { return time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC) }

	location, err := store.Put(context.Background(), "1700000000_op-note.pdf", []byte("pdf"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if location != "s3://ortho-bucket/attachments/20250314/1700000000_op-note.pdf" {
		t.Fatalf("Put() location = %q", location)
	}
	if putter.key != "attachments/20250314/1700000000_op-note.pdf" || putter.body != "pdf" {
		t.Fatalf("PutObject() key=%q body=%q", putter.key, putter.body)
	}
}

func TestFallbackStoreUsesSecondaryOnError(t *testing.T) {
	dir := t.TempDir()
	primary := newS3Store(&fakePutter{err: errors.New("no route to host")}, "ortho-bucket")
	store := NewFallbackStore(primary, NewLocalStore(dir))

	location, err := store.Put(context.Background(), "scan.png", []byte("x"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(location, dir) {
		t.Fatalf("Put() location = %q, want local fallback", location)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Fatalf("NewS3Store() expected error without bucket")
	}
}
