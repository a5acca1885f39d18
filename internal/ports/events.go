package ports

import "context"

const (
	SubjectProcedureLogged      = "procedure.logged"
	SubjectCommissionRecomputed = "commission.recomputed"
)

// EventPublisher fans domain events out to other systems. Delivery is best
// effort; callers log and continue on error.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}
