package ports

import "context"

// AttachmentStore persists uploaded files and returns where they ended up
// (a local path or an object URL).
type AttachmentStore interface {
	Put(ctx context.Context, name string, body []byte) (location string, err error)
}
