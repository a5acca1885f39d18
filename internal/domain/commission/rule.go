package commission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModePercentage Mode = "percentage"
	ModeFixed      Mode = "fixed"
)

// ParseMode normalizes a mode string. Blank input means percentage.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModePercentage:
		return ModePercentage, nil
	case ModeFixed:
		return ModeFixed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

var (
	DefaultEffectiveFrom = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	DefaultEffectiveTo   = time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Condition maps attribute names to the scalar value they must equal.
type Condition map[string]any

// Keys returns the condition keys in sorted order.
func (c Condition) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// JSON renders the condition as a compact JSON object.
func (c Condition) JSON() (string, error) {
	if len(c) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]any(c))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseCondition decodes a JSON object. Blank input is an empty condition.
func ParseCondition(raw string) (Condition, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Condition{}, nil
	}

	dec := json.NewDecoder(bytes.NewBufferString(trimmed))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConditionJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidConditionJSON)
	}
	if out == nil {
		return Condition{}, nil
	}
	return Condition(out), nil
}

type Rule struct {
	ID            uint64
	Name          string
	Condition     Condition
	Mode          Mode
	Value         float64
	Active        bool
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

// InForce reports whether the rule is active and now lies inside its
// inclusive effective window.
func (r Rule) InForce(now time.Time) bool {
	if !r.Active {
		return false
	}
	if now.Before(r.EffectiveFrom) {
		return false
	}
	if now.After(r.EffectiveTo) {
		return false
	}
	return true
}

// EmptyConditionPolicy decides what a rule without conditions means.
type EmptyConditionPolicy string

const (
	EmptyConditionMatchAll EmptyConditionPolicy = "match_all"
	EmptyConditionReject   EmptyConditionPolicy = "reject"
)

func ParseEmptyConditionPolicy(raw string) (EmptyConditionPolicy, error) {
	switch EmptyConditionPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EmptyConditionMatchAll:
		return EmptyConditionMatchAll, nil
	case EmptyConditionReject:
		return EmptyConditionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(rule Rule, policy EmptyConditionPolicy) error {
	if strings.TrimSpace(rule.Name) == "" {
		return ErrRuleNameRequired
	}
	if rule.Mode != ModePercentage && rule.Mode != ModeFixed {
		return fmt.Errorf("%w: %q", ErrInvalidMode, rule.Mode)
	}
	if rule.Value < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeValue, rule.Value)
	}
	if rule.EffectiveFrom.After(rule.EffectiveTo) {
		return fmt.Errorf(
			"%w: %s > %s",
			ErrInvalidWindow,
			rule.EffectiveFrom.UTC().Format(time.RFC3339),
			rule.EffectiveTo.UTC().Format(time.RFC3339),
		)
	}
	if len(rule.Condition) == 0 && policy == EmptyConditionReject {
		return ErrEmptyCondition
	}
	for _, key := range rule.Condition.Keys() {
		if !IsKnownAttribute(key) {
			return fmt.Errorf("%w: %q", ErrUnknownAttribute, key)
		}
		if _, ok := scalarString(rule.Condition[key]); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidConditionValue, key)
		}
	}
	return nil
}

// scalarString renders a condition value the same way Procedure.Attribute
// renders fields. Non-scalar values report false.
func scalarString(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		return typed, true
	case bool:
		return strconv.FormatBool(typed), true
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return "", false
		}
		return formatNumber(f), true
	case float64:
		return formatNumber(typed), true
	case float32:
		return formatNumber(float64(typed)), true
	case int:
		return strconv.FormatInt(int64(typed), 10), true
	case int32:
		return strconv.FormatInt(int64(typed), 10), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case uint:
		return strconv.FormatUint(uint64(typed), 10), true
	case uint32:
		return strconv.FormatUint(uint64(typed), 10), true
	case uint64:
		return strconv.FormatUint(typed, 10), true
	default:
		return "", false
	}
}
