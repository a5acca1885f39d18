package commission

import (
	"errors"
	"testing"
)

func TestParseCondition(t *testing.T) {
	cond, err := ParseCondition(`{"procedure_type":"Knee Arthroplasty","hospital":"County Hospital"}`)
	if err != nil {
		t.Fatalf("ParseCondition() error = %v", err)
	}
	if len(cond) != 2 || cond["hospital"] != "County Hospital" {
		t.Fatalf("ParseCondition() = %#v", cond)
	}

	empty, err := ParseCondition("   ")
	if err != nil {
		t.Fatalf("ParseCondition(blank) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("ParseCondition(blank) = %#v", empty)
	}

	for _, bad := range []string{`{"procedure_type":`, `["a"]`, `{"a":1} {"b":2}`} {
		if _, err := ParseCondition(bad); !errors.Is(err, ErrInvalidConditionJSON) {
			t.Fatalf("ParseCondition(%q) error = %v, want ErrInvalidConditionJSON", bad, err)
		}
	}
}

func TestConditionJSONRoundTripKeepsNumbers(t *testing.T) {
	cond, err := ParseCondition(`{"revenue": 200000}`)
	if err != nil {
		t.Fatalf("ParseCondition() error = %v", err)
	}
	raw, err := cond.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if raw != `{"revenue":200000}` {
		t.Fatalf("JSON() = %s", raw)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	if err != nil || mode != ModePercentage {
		t.Fatalf("ParseMode(\"\") = %q, %v", mode, err)
	}
	mode, err = ParseMode(" Fixed ")
	if err != nil || mode != ModeFixed {
		t.Fatalf("ParseMode(Fixed) = %q, %v", mode, err)
	}
	if _, err := ParseMode("tiered"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("ParseMode(tiered) error = %v", err)
	}
}

func TestParseEmptyConditionPolicy(t *testing.T) {
	policy, err := ParseEmptyConditionPolicy("")
	if err != nil || policy != EmptyConditionMatchAll {
		t.Fatalf("ParseEmptyConditionPolicy(\"\") = %q, %v", policy, err)
	}
	policy, err = ParseEmptyConditionPolicy("REJECT")
	if err != nil || policy != EmptyConditionReject {
		t.Fatalf("ParseEmptyConditionPolicy(REJECT) = %q, %v", policy, err)
	}
	if _, err := ParseEmptyConditionPolicy("ignore"); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("ParseEmptyConditionPolicy(ignore) error = %v", err)
	}
}

func TestProcedureAttribute(t *testing.T) {
	p := Procedure{ID: 4, RepID: 2, Revenue: 1500.5, Hospital: "Mater", Date: "2025-03-14"}

	testCases := []struct {
		name  string
		want  string
		found bool
	}{
		{name: "id", want: "4", found: true},
		{name: "rep_id", want: "2", found: true},
		{name: "revenue", want: "1500.5", found: true},
		{name: "hospital", want: "Mater", found: true},
		{name: "date", want: "2025-03-14", found: true},
		{name: "surgeon", want: "", found: true},
		{name: "created_at", found: false},
		{name: "Hospital", found: false},
	}
	for _, testCase := range testCases {
		got, found := p.Attribute(testCase.name)
		if found != testCase.found || got != testCase.want {
			t.Fatalf("Attribute(%q) = %q,%v want %q,%v", testCase.name, got, found, testCase.want, testCase.found)
		}
	}
}

func TestProcedureFromAttributes(t *testing.T) {
	p, unknown, err := ProcedureFromAttributes(map[string]string{
		"procedure_type": "Hip Arthroplasty",
		"revenue":        "90000",
		"territory":      "Coast",
		"brand":          "X",
	})
	if err != nil {
		t.Fatalf("ProcedureFromAttributes() error = %v", err)
	}
	if p.ProcedureType != "Hip Arthroplasty" || p.Revenue != 90000 {
		t.Fatalf("ProcedureFromAttributes() = %#v", p)
	}
	if len(unknown) != 2 || unknown[0] != "brand" || unknown[1] != "territory" {
		t.Fatalf("ProcedureFromAttributes() unknown = %#v", unknown)
	}

	if _, _, err := ProcedureFromAttributes(map[string]string{"revenue": "lots"}); err == nil {
		t.Fatalf("ProcedureFromAttributes() expected error for bad revenue")
	}
}
