package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"

	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// NATSPublisher publishes events on <prefix>.<subject>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: strings.Trim(strings.TrimSpace(prefix), ".")}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	full := Subject(p.prefix, subject)
	if err := p.conn.Publish(full, payload); err != nil {
		return errs.Wrapf(err, "publish %s", full)
	}
	return nil
}

// Subject joins prefix and subject with a dot, skipping an empty prefix.
func Subject(prefix string, subject string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// NoopPublisher drops events. It is used when no NATS url is configured.
type NoopPublisher struct{}

var _ ports.EventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, string, []byte) error {
	return nil
}
