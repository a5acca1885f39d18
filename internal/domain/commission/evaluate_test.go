package commission

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

func inForceRule(id uint64, cond Condition, mode Mode, value float64) Rule {
	return Rule{
		ID:            id,
		Name:          "rule",
		Condition:     cond,
		Mode:          mode,
		Value:         value,
		Active:        true,
		EffectiveFrom: DefaultEffectiveFrom,
		EffectiveTo:   DefaultEffectiveTo,
	}
}

func TestEvaluateEmptyRuleSetIsZero(t *testing.T) {
	p := Procedure{Revenue: 50000, ProcedureType: "Knee Arthroplasty"}

	if got := Evaluate(p, nil, testNow); got != 0 {
		t.Fatalf("Evaluate(nil) = %v, want 0", got)
	}
	if got := Evaluate(p, []Rule{}, testNow); got != 0 {
		t.Fatalf("Evaluate(empty) = %v, want 0", got)
	}
}

func TestEvaluateFixedIgnoresRevenue(t *testing.T) {
	rules := []Rule{inForceRule(1, Condition{"hospital": "County Hospital"}, ModeFixed, 750)}

	for _, revenue := range []float64{0, 10, 1_000_000} {
		p := Procedure{Hospital: "County Hospital", Revenue: revenue}
		if got := Evaluate(p, rules, testNow); got != 750 {
			t.Fatalf("Evaluate(revenue=%v) = %v, want 750", revenue, got)
		}
	}
}

func TestEvaluatePercentageOfRevenue(t *testing.T) {
	rules := []Rule{inForceRule(1, Condition{"procedure_type": "Hip Arthroplasty"}, ModePercentage, 2.5)}
	p := Procedure{ProcedureType: "Hip Arthroplasty", Revenue: 250000}

	if got := Evaluate(p, rules, testNow); got != 6250 {
		t.Fatalf("Evaluate() = %v, want 6250", got)
	}
}

func TestEvaluateSumsAllMatchingRules(t *testing.T) {
	rules := []Rule{
		inForceRule(1, Condition{"procedure_type": "Other"}, ModeFixed, 500),
		inForceRule(2, Condition{"procedure_type": "Other"}, ModePercentage, 10),
	}
	p := Procedure{ProcedureType: "Other", Revenue: 10000}

	if got := Evaluate(p, rules, testNow); got != 1500 {
		t.Fatalf("Evaluate() = %v, want 1500", got)
	}
}

func TestEvaluateSkipsRulesOutsideWindow(t *testing.T) {
	expired := inForceRule(1, Condition{"hospital": "County Hospital"}, ModeFixed, 100)
	expired.EffectiveTo = testNow.Add(-time.Nanosecond)

	future := inForceRule(2, Condition{"hospital": "County Hospital"}, ModeFixed, 200)
	future.EffectiveFrom = testNow.Add(time.Nanosecond)

	p := Procedure{Hospital: "County Hospital", Revenue: 1000}
	if got := Evaluate(p, []Rule{expired, future}, testNow); got != 0 {
		t.Fatalf("Evaluate() = %v, want 0", got)
	}
}

func TestEvaluateWindowBoundsAreInclusive(t *testing.T) {
	rule := inForceRule(1, Condition{}, ModeFixed, 100)
	rule.EffectiveFrom = testNow
	rule.EffectiveTo = testNow

	if got := Evaluate(Procedure{}, []Rule{rule}, testNow); got != 100 {
		t.Fatalf("Evaluate() = %v, want 100", got)
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	rule := inForceRule(1, Condition{"hospital": "County Hospital"}, ModeFixed, 100)
	rule.Active = false

	p := Procedure{Hospital: "County Hospital"}
	if got := Evaluate(p, []Rule{rule}, testNow); got != 0 {
		t.Fatalf("Evaluate() = %v, want 0", got)
	}
}

func TestEvaluateMissingAttributeNeverMatches(t *testing.T) {
	rules := []Rule{
		inForceRule(1, Condition{"territory": "Nairobi"}, ModeFixed, 100),
		inForceRule(2, Condition{"procedure_type": "Other", "implant_brand": "X"}, ModeFixed, 100),
	}
	p := Procedure{ProcedureType: "Other"}

	if got := Evaluate(p, rules, testNow); got != 0 {
		t.Fatalf("Evaluate() = %v, want 0", got)
	}
}

func TestEvaluateMatchingIsCaseInsensitive(t *testing.T) {
	rules := []Rule{inForceRule(1, Condition{"procedure_type": "Knee Arthroplasty"}, ModeFixed, 300)}
	p := Procedure{ProcedureType: "knee arthroplasty"}

	if got := Evaluate(p, rules, testNow); got != 300 {
		t.Fatalf("Evaluate() = %v, want 300", got)
	}
}

func TestEvaluateMalformedValueIsNonMatch(t *testing.T) {
	rules := []Rule{
		inForceRule(1, Condition{"hospital": map[string]any{"name": "County Hospital"}}, ModeFixed, 100),
		inForceRule(2, Condition{"hospital": []any{"County Hospital"}}, ModeFixed, 100),
		inForceRule(3, Condition{"hospital": nil}, ModeFixed, 100),
		inForceRule(4, Condition{"hospital": "County Hospital"}, ModeFixed, 40),
	}
	p := Procedure{Hospital: "County Hospital"}

	if got := Evaluate(p, rules, testNow); got != 40 {
		t.Fatalf("Evaluate() = %v, want 40", got)
	}
}

func TestEvaluateNumericConditionMatchesRevenue(t *testing.T) {
	cond, err := ParseCondition(`{"revenue": 200000, "rep_id": 7}`)
	if err != nil {
		t.Fatalf("ParseCondition() error = %v", err)
	}
	rules := []Rule{inForceRule(1, cond, ModeFixed, 100)}
	p := Procedure{Revenue: 200000.0, RepID: 7}

	if got := Evaluate(p, rules, testNow); got != 100 {
		t.Fatalf("Evaluate() = %v, want 100", got)
	}
}

func TestEvaluateEndToEndScenario(t *testing.T) {
	p := Procedure{
		Revenue:       200000,
		ProcedureType: "Knee Arthroplasty",
		Hospital:      "County Hospital",
	}
	rules := []Rule{
		inForceRule(1, Condition{"procedure_type": "Knee Arthroplasty"}, ModePercentage, 5),
		inForceRule(2, Condition{"hospital": "County Hospital"}, ModeFixed, 1000),
	}

	if got := Evaluate(p, rules, testNow); got != 11000 {
		t.Fatalf("Evaluate() = %v, want 11000", got)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	p := Procedure{Revenue: 123456.78, ProcedureType: "Trauma - Intramedullary Nail", Hospital: "Mater"}
	rules := []Rule{
		inForceRule(1, Condition{"procedure_type": "trauma - intramedullary nail"}, ModePercentage, 3.3),
		inForceRule(2, Condition{}, ModeFixed, 250),
	}

	first := Evaluate(p, rules, testNow)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Evaluate(p, rules, testNow)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != first {
			t.Fatalf("Evaluate() run %d = %v, want %v", i, got, first)
		}
	}
}

func TestEvaluatorRejectPolicySkipsEmptyCondition(t *testing.T) {
	rules := []Rule{
		inForceRule(1, Condition{}, ModeFixed, 100),
		inForceRule(2, Condition{"status": "PENDING"}, ModeFixed, 10),
	}
	p := Procedure{Status: "pending"}

	if got := Evaluate(p, rules, testNow); got != 110 {
		t.Fatalf("Evaluate(match_all) = %v, want 110", got)
	}

	strict := Evaluator{EmptyCondition: EmptyConditionReject}
	if got := strict.Evaluate(p, rules, testNow); got != 10 {
		t.Fatalf("Evaluate(reject) = %v, want 10", got)
	}
}

func TestExplainSumsToEvaluate(t *testing.T) {
	p := Procedure{Revenue: 200000, ProcedureType: "Knee Arthroplasty", Hospital: "County Hospital"}
	rules := []Rule{
		inForceRule(1, Condition{"procedure_type": "Knee Arthroplasty"}, ModePercentage, 5),
		inForceRule(2, Condition{"hospital": "Other Hospital"}, ModeFixed, 999),
		inForceRule(3, Condition{"hospital": "County Hospital"}, ModeFixed, 1000),
	}

	parts := Explain(p, rules, testNow)
	if len(parts) != 2 {
		t.Fatalf("Explain() len = %d, want 2", len(parts))
	}
	if parts[0].RuleID != 1 || parts[1].RuleID != 3 {
		t.Fatalf("Explain() rule ids = %d,%d", parts[0].RuleID, parts[1].RuleID)
	}

	sum := 0.0
	for _, part := range parts {
		sum += part.Amount
	}
	if sum != Evaluate(p, rules, testNow) {
		t.Fatalf("Explain() sum = %v, want %v", sum, Evaluate(p, rules, testNow))
	}
}

func TestValidateRule(t *testing.T) {
	base := inForceRule(0, Condition{"procedure_type": "Other"}, ModePercentage, 5)
	base.Name = "other 5%"

	testCases := []struct {
		name   string
		mutate func(r *Rule)
		policy EmptyConditionPolicy
		want   error
	}{
		{name: "valid", mutate: func(*Rule) {}, policy: EmptyConditionMatchAll},
		{name: "missing name", mutate: func(r *Rule) { r.Name = " " }, want: ErrRuleNameRequired},
		{name: "bad mode", mutate: func(r *Rule) { r.Mode = "bonus" }, want: ErrInvalidMode},
		{name: "negative", mutate: func(r *Rule) { r.Value = -1 }, want: ErrNegativeValue},
		{name: "inverted window", mutate: func(r *Rule) { r.EffectiveFrom = DefaultEffectiveTo; r.EffectiveTo = DefaultEffectiveFrom }, want: ErrInvalidWindow},
		{name: "unknown attribute", mutate: func(r *Rule) { r.Condition = Condition{"territory": "x"} }, want: ErrUnknownAttribute},
		{name: "non scalar", mutate: func(r *Rule) { r.Condition = Condition{"hospital": []any{"a"}} }, want: ErrInvalidConditionValue},
		{name: "empty allowed", mutate: func(r *Rule) { r.Condition = Condition{} }, policy: EmptyConditionMatchAll},
		{name: "empty rejected", mutate: func(r *Rule) { r.Condition = Condition{} }, policy: EmptyConditionReject, want: ErrEmptyCondition},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			rule := base
			rule.Condition = Condition{"procedure_type": "Other"}
			testCase.mutate(&rule)

			err := ValidateRule(rule, testCase.policy)
			if testCase.want == nil {
				if err != nil {
					t.Fatalf("ValidateRule() error = %v", err)
				}
				return
			}
			if !errors.Is(err, testCase.want) {
				t.Fatalf("ValidateRule() error = %v, want %v", err, testCase.want)
			}
		})
	}
}
