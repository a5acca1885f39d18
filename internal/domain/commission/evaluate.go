package commission

import (
	"strings"
	"time"
)

// Contribution is one matching rule's share of a commission.
type Contribution struct {
	RuleID uint64  `json:"rule_id"`
	Name   string  `json:"name"`
	Mode   Mode    `json:"mode"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
}

// Evaluator computes commissions from an explicit rule snapshot.
// The zero value uses EmptyConditionMatchAll.
type Evaluator struct {
	EmptyCondition EmptyConditionPolicy
}

// Evaluate sums the contributions of every in-force rule that matches p.
func Evaluate(p Procedure, rules []Rule, now time.Time) float64 {
	return Evaluator{}.Evaluate(p, rules, now)
}

// Explain returns the per-rule breakdown behind Evaluate.
func Explain(p Procedure, rules []Rule, now time.Time) []Contribution {
	return Evaluator{}.Explain(p, rules, now)
}

func (e Evaluator) Evaluate(p Procedure, rules []Rule, now time.Time) float64 {
	total := 0.0
	for _, rule := range rules {
		if amount, ok := e.contribution(p, rule, now); ok {
			total += amount
		}
	}
	return total
}

func (e Evaluator) Explain(p Procedure, rules []Rule, now time.Time) []Contribution {
	out := make([]Contribution, 0, len(rules))
	for _, rule := range rules {
		amount, ok := e.contribution(p, rule, now)
		if !ok {
			continue
		}
		out = append(out, Contribution{
			RuleID: rule.ID,
			Name:   rule.Name,
			Mode:   rule.Mode,
			Value:  rule.Value,
			Amount: amount,
		})
	}
	return out
}

// Matches reports whether every condition pair holds for p.
func (e Evaluator) Matches(p Procedure, cond Condition) bool {
	if len(cond) == 0 {
		return e.EmptyCondition != EmptyConditionReject
	}
	for key, expected := range cond {
		actual, ok := p.Attribute(key)
		if !ok {
			return false
		}
		want, ok := scalarString(expected)
		if !ok {
			return false
		}
		if strings.ToLower(actual) != strings.ToLower(want) {
			return false
		}
	}
	return true
}

func (e Evaluator) contribution(p Procedure, rule Rule, now time.Time) (float64, bool) {
	if !rule.InForce(now) {
		return 0, false
	}
	if !e.Matches(p, rule.Condition) {
		return 0, false
	}
	switch rule.Mode {
	case ModePercentage:
		return p.Revenue * (rule.Value / 100), true
	case ModeFixed:
		return rule.Value, true
	default:
		return 0, false
	}
}
