package ports

import "io"

type ProcedureReportRow struct {
	ID            uint64
	Date          string
	RepName       string
	ProcedureType string
	Hospital      string
	Surgeon       string
	Revenue       float64
	Status        string
	Commission    float64
}

// ProcedureReportWriter renders procedure rows. A non-empty ids keeps only
// those procedures.
type ProcedureReportWriter interface {
	WriteProcedures(w io.Writer, rows []ProcedureReportRow, ids []uint64) error
}
