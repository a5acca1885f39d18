package commission

import (
	"sort"
	"strconv"
	"strings"
)

// Attribute names a procedure field that rule conditions may reference.
type Attribute string

const (
	AttrID            Attribute = "id"
	AttrRepID         Attribute = "rep_id"
	AttrRepName       Attribute = "rep_name"
	AttrHospital      Attribute = "hospital"
	AttrSurgeon       Attribute = "surgeon"
	AttrProcedureType Attribute = "procedure_type"
	AttrDate          Attribute = "date"
	AttrRevenue       Attribute = "revenue"
	AttrNotes         Attribute = "notes"
	AttrStatus        Attribute = "status"
)

var knownAttributes = []Attribute{
	AttrID,
	AttrRepID,
	AttrRepName,
	AttrHospital,
	AttrSurgeon,
	AttrProcedureType,
	AttrDate,
	AttrRevenue,
	AttrNotes,
	AttrStatus,
}

// Attributes lists every attribute a condition may reference.
func Attributes() []Attribute {
	out := make([]Attribute, len(knownAttributes))
	copy(out, knownAttributes)
	return out
}

// IsKnownAttribute reports whether name is part of the enumerated attribute set.
func IsKnownAttribute(name string) bool {
	for _, attr := range knownAttributes {
		if string(attr) == name {
			return true
		}
	}
	return false
}

// Procedure is the evaluator's view of a logged procedure.
type Procedure struct {
	ID            uint64
	RepID         uint64
	RepName       string
	Hospital      string
	Surgeon       string
	ProcedureType string
	Date          string
	Revenue       float64
	Notes         string
	Status        string
}

// Attribute returns the canonical string form of the named attribute.
// Unknown names report false.
func (p Procedure) Attribute(name string) (string, bool) {
	switch Attribute(name) {
	case AttrID:
		return strconv.FormatUint(p.ID, 10), true
	case AttrRepID:
		return strconv.FormatUint(p.RepID, 10), true
	case AttrRepName:
		return p.RepName, true
	case AttrHospital:
		return p.Hospital, true
	case AttrSurgeon:
		return p.Surgeon, true
	case AttrProcedureType:
		return p.ProcedureType, true
	case AttrDate:
		return p.Date, true
	case AttrRevenue:
		return formatNumber(p.Revenue), true
	case AttrNotes:
		return p.Notes, true
	case AttrStatus:
		return p.Status, true
	default:
		return "", false
	}
}

// ProcedureFromAttributes builds a Procedure from loose key/value pairs, as
// used by previews. Unknown keys are returned so callers can report them.
func ProcedureFromAttributes(attrs map[string]string) (Procedure, []string, error) {
	var p Procedure
	var unknown []string
	for rawKey, rawValue := range attrs {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		value := strings.TrimSpace(rawValue)
		switch Attribute(key) {
		case AttrID:
			id, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return Procedure{}, nil, err
			}
			p.ID = id
		case AttrRepID:
			id, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return Procedure{}, nil, err
			}
			p.RepID = id
		case AttrRepName:
			p.RepName = value
		case AttrHospital:
			p.Hospital = value
		case AttrSurgeon:
			p.Surgeon = value
		case AttrProcedureType:
			p.ProcedureType = value
		case AttrDate:
			p.Date = value
		case AttrRevenue:
			revenue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Procedure{}, nil, err
			}
			p.Revenue = revenue
		case AttrNotes:
			p.Notes = value
		case AttrStatus:
			p.Status = value
		default:
			unknown = append(unknown, rawKey)
		}
	}
	sort.Strings(unknown)
	return p, unknown, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
