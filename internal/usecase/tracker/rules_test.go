package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"orthotracker/internal/domain/commission"
)

func TestCreateRuleAppliesDefaults(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)

	rule := mustCreateRule(t, env.svc, "knee 5%", `{"procedure_type":"Knee Arthroplasty"}`, "", 5)
	if rule.Mode != string(commission.ModePercentage) || !rule.Active {
		t.Fatalf("CreateRule() = %#v", rule)
	}
	if rule.EffectiveFrom != "2000-01-01T00:00:00Z" || rule.EffectiveTo != "2099-01-01T00:00:00Z" {
		t.Fatalf("CreateRule() window = %s..%s", rule.EffectiveFrom, rule.EffectiveTo)
	}
	if rule.Condition["procedure_type"] != "Knee Arthroplasty" {
		t.Fatalf("CreateRule() condition = %#v", rule.Condition)
	}
	if !containsAction(auditActions(t, env.svc), "create_rule") {
		t.Fatalf("audit missing create_rule")
	}
}

func TestCreateRuleRejectsInvalidInput(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	_, err := env.svc.CreateRule(ctx, RuleInput{Name: "broken", ConditionJSON: `{"hospital":`, Value: 1})
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, commission.ErrInvalidConditionJSON) {
		t.Fatalf("CreateRule(bad json) error = %v", err)
	}

	_, err = env.svc.CreateRule(ctx, RuleInput{Name: "neg", ConditionJSON: `{"hospital":"Mater"}`, Value: -1})
	if !errors.Is(err, commission.ErrNegativeValue) {
		t.Fatalf("CreateRule(negative) error = %v", err)
	}

	_, err = env.svc.CreateRule(ctx, RuleInput{
		Name:          "window",
		ConditionJSON: `{"hospital":"Mater"}`,
		EffectiveFrom: "2025-12-31",
		EffectiveTo:   "2025-01-01",
	})
	if !errors.Is(err, commission.ErrInvalidWindow) {
		t.Fatalf("CreateRule(window) error = %v", err)
	}

	_, err = env.svc.CreateRule(ctx, RuleInput{Name: "territory", ConditionJSON: `{"territory":"Coast"}`})
	if !errors.Is(err, commission.ErrUnknownAttribute) {
		t.Fatalf("CreateRule(unknown attr) error = %v", err)
	}

	rules, err := env.svc.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("ListRules() len = %d, want 0", len(rules))
	}
}

func TestCreateRuleEmptyConditionPolicy(t *testing.T) {
	ctx := context.Background()

	lenient := setupEnv(t, commission.EmptyConditionMatchAll)
	if _, err := lenient.svc.CreateRule(ctx, RuleInput{Name: "flat", Mode: "fixed", Value: 100}); err != nil {
		t.Fatalf("CreateRule(match_all) error = %v", err)
	}

	strict := setupEnv(t, commission.EmptyConditionReject)
	if _, err := strict.svc.CreateRule(ctx, RuleInput{Name: "flat", Mode: "fixed", Value: 100}); !errors.Is(err, commission.ErrEmptyCondition) {
		t.Fatalf("CreateRule(reject) error = %v, want ErrEmptyCondition", err)
	}
}

func TestSetRuleActive(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	rule := mustCreateRule(t, env.svc, "flat", `{"hospital":"Mater"}`, "fixed", 100)
	if err := env.svc.SetRuleActive(ctx, rule.RuleID, false, "admin@example.com"); err != nil {
		t.Fatalf("SetRuleActive(false) error = %v", err)
	}
	rules, err := env.svc.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if rules[0].Active {
		t.Fatalf("rule still active after deactivate")
	}
	if err := env.svc.SetRuleActive(ctx, rule.RuleID, true, "admin@example.com"); err != nil {
		t.Fatalf("SetRuleActive(true) error = %v", err)
	}
	if err := env.svc.SetRuleActive(ctx, 999, true, "admin@example.com"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("SetRuleActive(missing) error = %v", err)
	}

	actions := auditActions(t, env.svc)
	if !containsAction(actions, "activate_rule") || !containsAction(actions, "deactivate_rule") {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestImportRules(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	doc := []byte(`
[[rules]]
name = "Knee 5%"
mode = "percentage"
value = 5.0
[rules.condition]
procedure_type = "Knee Arthroplasty"

[[rules]]
name = "County bonus"
mode = "fixed"
value = 1000.0
effective_from = "2025-01-01"
effective_to = "2025-12-31"
condition_json = '{"hospital": "County Hospital"}'
`)

	created, err := env.svc.ImportRules(ctx, doc, "admin@example.com")
	if err != nil {
		t.Fatalf("ImportRules() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("ImportRules() len = %d", len(created))
	}
	if created[1].EffectiveTo != "2025-12-31T23:59:59.999999999Z" {
		t.Fatalf("ImportRules() effective_to = %s", created[1].EffectiveTo)
	}

	preview, err := env.svc.PreviewCommission(ctx, map[string]string{
		"procedure_type": "Knee Arthroplasty",
		"hospital":       "County Hospital",
		"revenue":        "200000",
	}, time.Time{})
	if err != nil {
		t.Fatalf("PreviewCommission() error = %v", err)
	}
	if preview.Total != 11000 || len(preview.Contributions) != 2 {
		t.Fatalf("PreviewCommission() = %#v", preview)
	}
}

func TestImportRulesIsAllOrNothing(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	doc := []byte(`
[[rules]]
name = "ok"
value = 5.0
[rules.condition]
procedure_type = "Other"

[[rules]]
name = "bad"
value = -5.0
[rules.condition]
procedure_type = "Other"
`)
	if _, err := env.svc.ImportRules(ctx, doc, "admin@example.com"); !errors.Is(err, commission.ErrNegativeValue) {
		t.Fatalf("ImportRules() error = %v, want ErrNegativeValue", err)
	}
	rules, err := env.svc.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("ListRules() len = %d after failed import", len(rules))
	}

	if _, err := env.svc.ImportRules(ctx, []byte(`title = "no rules"`), "admin@example.com"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ImportRules(empty) error = %v", err)
	}
}

func TestPreviewCommissionHonoursWindowAndUnknownKeys(t *testing.T) {
	env := setupEnv(t, commission.EmptyConditionMatchAll)
	ctx := context.Background()

	if _, err := env.svc.CreateRule(ctx, RuleInput{
		Name:          "2024 only",
		ConditionJSON: `{"hospital":"Mater"}`,
		Mode:          "fixed",
		Value:         500,
		EffectiveFrom: "2024-01-01",
		EffectiveTo:   "2024-12-31",
	}); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	inside, err := env.svc.PreviewCommission(ctx, map[string]string{"hospital": "mater", "brand": "X"}, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PreviewCommission() error = %v", err)
	}
	if inside.Total != 500 || len(inside.UnknownAttributes) != 1 || inside.UnknownAttributes[0] != "brand" {
		t.Fatalf("PreviewCommission(2024) = %#v", inside)
	}

	outside, err := env.svc.PreviewCommission(ctx, map[string]string{"hospital": "Mater"}, time.Time{})
	if err != nil {
		t.Fatalf("PreviewCommission() error = %v", err)
	}
	if outside.Total != 0 {
		t.Fatalf("PreviewCommission(now) total = %v, want 0", outside.Total)
	}

	if _, err := env.svc.PreviewCommission(ctx, map[string]string{"revenue": "lots"}, time.Time{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("PreviewCommission(bad revenue) error = %v", err)
	}
}
