package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// ProcedureColumns is the fixed column order of the procedures report.
var ProcedureColumns = []string{
	"id",
	"date",
	"rep_name",
	"procedure_type",
	"hospital",
	"surgeon",
	"revenue",
	"status",
	"commission",
}

// CSVWriter renders the procedures report through a gota dataframe.
type CSVWriter struct{}

var _ ports.ProcedureReportWriter = CSVWriter{}

func NewCSVWriter() CSVWriter {
	return CSVWriter{}
}

// WriteProcedures renders rows as CSV. When ids is non-empty only those
// procedures are kept.
func (CSVWriter) WriteProcedures(w io.Writer, rows []ports.ProcedureReportRow, ids []uint64) error {
	df := procedureFrame(rows)
	if df.Nrow() > 0 && len(ids) > 0 {
		wanted := make([]string, 0, len(ids))
		for _, id := range ids {
			wanted = append(wanted, strconv.FormatUint(id, 10))
		}
		df = df.Filter(dataframe.F{
			Colname:    "id",
			Comparator: series.In,
			Comparando: wanted,
		})
		if df.Err != nil {
			return errs.Wrap(df.Err, "filter procedures by id")
		}
	}

	if df.Nrow() == 0 {
		return writeHeader(w)
	}
	if err := df.WriteCSV(w); err != nil {
		return errs.Wrap(err, "write procedures csv")
	}
	return nil
}

func procedureFrame(rows []ports.ProcedureReportRow) dataframe.DataFrame {
	if len(rows) == 0 {
		return dataframe.DataFrame{}
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, ProcedureColumns)
	for _, row := range rows {
		records = append(records, []string{
			strconv.FormatUint(row.ID, 10),
			row.Date,
			row.RepName,
			row.ProcedureType,
			row.Hospital,
			row.Surgeon,
			strconv.FormatFloat(row.Revenue, 'f', -1, 64),
			row.Status,
			strconv.FormatFloat(row.Commission, 'f', -1, 64),
		})
	}

	return dataframe.LoadRecords(
		records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

func writeHeader(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ProcedureColumns); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	writer.Flush()
	return writer.Error()
}
