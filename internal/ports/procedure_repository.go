package ports

import (
	"context"
	"errors"
)

var (
	ErrProcedureNotFound  = errors.New("procedure not found")
	ErrCommissionNotFound = errors.New("commission not found")
)

type Procedure struct {
	ProcedureID   uint64
	RepID         uint64
	RepName       string
	Hospital      string
	Surgeon       string
	ProcedureType string
	Date          string
	Revenue       float64
	Notes         string
	Status        string
	CreatedAt     string
}

type Attachment struct {
	AttachmentID uint64
	ProcedureID  uint64
	Filename     string
	Location     string
	UploadedAt   string
}

type Commission struct {
	CommissionID uint64
	ProcedureID  uint64
	RepID        uint64
	Amount       float64
	CalculatedAt string
}

type ProcedureFilter struct {
	RepID uint64
	IDs   []uint64
	Limit int
}

type ProcedureTypeCount struct {
	ProcedureType string
	Count         int64
}

type ProcedureStats struct {
	Total           int64
	TotalRevenue    float64
	Pending         int64
	TotalCommission float64
	ByType          []ProcedureTypeCount
}

type ProcedureRepository interface {
	CreateProcedure(ctx context.Context, procedure Procedure) (Procedure, error)
	GetProcedure(ctx context.Context, procedureID uint64) (Procedure, error)
	// ListProcedures orders by created_at descending.
	ListProcedures(ctx context.Context, filter ProcedureFilter) ([]Procedure, error)
	// ListRecentProcedures orders by procedure date descending.
	ListRecentProcedures(ctx context.Context, limit int) ([]Procedure, error)
	ProcedureStats(ctx context.Context) (ProcedureStats, error)

	AddAttachment(ctx context.Context, attachment Attachment) (Attachment, error)
	ListAttachments(ctx context.Context, procedureID uint64) ([]Attachment, error)

	// SaveCommission inserts or replaces the single commission of a procedure.
	SaveCommission(ctx context.Context, commission Commission) (Commission, error)
	GetCommission(ctx context.Context, procedureID uint64) (Commission, error)
	ListCommissions(ctx context.Context, procedureIDs []uint64) (map[uint64]Commission, error)
}
