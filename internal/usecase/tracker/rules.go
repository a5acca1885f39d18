package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/domain/commission"
	"orthotracker/internal/errs"
	"orthotracker/internal/ports"
)

// CreateRule validates and stores one commission rule.
func (s *Service) CreateRule(ctx context.Context, input RuleInput) (RuleView, error) {
	if err := checkContext(ctx); err != nil {
		return RuleView{}, err
	}

	row, err := s.buildRule(input)
	if err != nil {
		return RuleView{}, err
	}

	var created ports.CommissionRule
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.createRuleTx(txCtx, row, input.Actor)
		return err
	}); err != nil {
		return RuleView{}, err
	}
	return ruleView(created), nil
}

func (s *Service) createRuleTx(ctx context.Context, row ports.CommissionRule, actor string) (ports.CommissionRule, error) {
	created, err := s.rules.CreateRule(ctx, row)
	if err != nil {
		return ports.CommissionRule{}, err
	}
	details := fmt.Sprintf("%s %s=%s condition=%s", created.Name, created.Mode, strconv.FormatFloat(created.Value, 'f', -1, 64), created.ConditionJSON)
	if err := appendAuditTx(ctx, s.audit, actor, "create_rule", "commission_rule", strconv.FormatUint(created.RuleID, 10), details, created.CreatedAt); err != nil {
		return ports.CommissionRule{}, err
	}
	return created, nil
}

// buildRule applies defaults, runs domain validation and renders the row.
func (s *Service) buildRule(input RuleInput) (ports.CommissionRule, error) {
	cond, err := commission.ParseCondition(input.ConditionJSON)
	if err != nil {
		return ports.CommissionRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.buildRuleWithCondition(input, cond)
}

func (s *Service) buildRuleWithCondition(input RuleInput, cond commission.Condition) (ports.CommissionRule, error) {
	mode, err := commission.ParseMode(input.Mode)
	if err != nil {
		return ports.CommissionRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	from, err := parseRuleTime(input.EffectiveFrom, commission.DefaultEffectiveFrom, false)
	if err != nil {
		return ports.CommissionRule{}, invalidInput("effective_from: %v", err)
	}
	to, err := parseRuleTime(input.EffectiveTo, commission.DefaultEffectiveTo, true)
	if err != nil {
		return ports.CommissionRule{}, invalidInput("effective_to: %v", err)
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	if cond == nil {
		cond = commission.Condition{}
	}

	rule := commission.Rule{
		Name:          strings.TrimSpace(input.Name),
		Condition:     cond,
		Mode:          mode,
		Value:         input.Value,
		Active:        active,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
	if err := commission.ValidateRule(rule, s.policy); err != nil {
		return ports.CommissionRule{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	condJSON, err := cond.JSON()
	if err != nil {
		return ports.CommissionRule{}, errs.Wrap(err, "encode condition")
	}

	return ports.CommissionRule{
		Name:          rule.Name,
		ConditionJSON: condJSON,
		Mode:          string(rule.Mode),
		Value:         rule.Value,
		Active:        rule.Active,
		EffectiveFrom: formatTime(rule.EffectiveFrom),
		EffectiveTo:   formatTime(rule.EffectiveTo),
		CreatedAt:     formatTime(s.nowUTC()),
	}, nil
}

func (s *Service) ListRules(ctx context.Context) ([]RuleView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RuleView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ruleView(row))
	}
	return out, nil
}

func (s *Service) SetRuleActive(ctx context.Context, ruleID uint64, active bool, actor string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if ruleID == 0 {
		return invalidInput("rule id is required")
	}

	action := "deactivate_rule"
	if active {
		action = "activate_rule"
	}
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.rules.SetRuleActive(txCtx, ruleID, active); err != nil {
			return err
		}
		return appendAuditTx(txCtx, s.audit, actor, action, "commission_rule", strconv.FormatUint(ruleID, 10), "", formatTime(s.nowUTC()))
	})
}

type ruleFile struct {
	Rules []ruleFileEntry `toml:"rules"`
}

type ruleFileEntry struct {
	Name          string         `toml:"name"`
	Mode          string         `toml:"mode"`
	Value         float64        `toml:"value"`
	Active        *bool          `toml:"active"`
	EffectiveFrom string         `toml:"effective_from"`
	EffectiveTo   string         `toml:"effective_to"`
	Condition     map[string]any `toml:"condition"`
	ConditionJSON string         `toml:"condition_json"`
}

// ImportRules creates every [[rules]] entry of a TOML document in one
// transaction. One invalid entry aborts the whole import.
func (s *Service) ImportRules(ctx context.Context, raw []byte, actor string) ([]RuleView, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var doc ruleFile
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, invalidInput("parse rules toml: %v", err)
	}
	if len(doc.Rules) == 0 {
		return nil, invalidInput("rules file contains no [[rules]] entries")
	}

	rows := make([]ports.CommissionRule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		input := RuleInput{
			Name:          entry.Name,
			Mode:          entry.Mode,
			Value:         entry.Value,
			Active:        entry.Active,
			EffectiveFrom: entry.EffectiveFrom,
			EffectiveTo:   entry.EffectiveTo,
		}

		var (
			row ports.CommissionRule
			err error
		)
		if entry.Condition != nil {
			row, err = s.buildRuleWithCondition(input, commission.Condition(entry.Condition))
		} else {
			input.ConditionJSON = entry.ConditionJSON
			row, err = s.buildRule(input)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, strings.TrimSpace(entry.Name), err)
		}
		rows = append(rows, row)
	}

	out := make([]RuleView, 0, len(rows))
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, row := range rows {
			created, err := s.createRuleTx(txCtx, row, actor)
			if err != nil {
				return err
			}
			out = append(out, ruleView(created))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewCommission evaluates ad-hoc attributes against the current rules
// without persisting anything. A zero now means the current time.
func (s *Service) PreviewCommission(ctx context.Context, attrs map[string]string, now time.Time) (PreviewResult, error) {
	if err := checkContext(ctx); err != nil {
		return PreviewResult{}, err
	}

	procedure, unknown, err := commission.ProcedureFromAttributes(attrs)
	if err != nil {
		return PreviewResult{}, invalidInput("procedure attributes: %v", err)
	}
	if now.IsZero() {
		now = s.nowUTC()
	}

	rules, err := s.loadRuleSnapshot(ctx)
	if err != nil {
		return PreviewResult{}, err
	}

	parts := s.evaluator.Explain(procedure, rules, now)
	total := 0.0
	for _, part := range parts {
		total += part.Amount
	}
	return PreviewResult{Total: total, Contributions: parts, UnknownAttributes: unknown}, nil
}

// loadRuleSnapshot reads every stored rule into its domain form. Rows that
// cannot be decoded are skipped so they never contribute.
func (s *Service) loadRuleSnapshot(ctx context.Context) ([]commission.Rule, error) {
	rows, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "load commission rules")
	}

	out := make([]commission.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := domainRule(row)
		if err != nil {
			logging.Warn(
				logging.WithAttrs(ctx, slog.String("component", "tracker.rules")),
				"skipping undecodable commission rule",
				slog.Uint64("rule_id", row.RuleID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func domainRule(row ports.CommissionRule) (commission.Rule, error) {
	cond, err := commission.ParseCondition(row.ConditionJSON)
	if err != nil {
		return commission.Rule{}, err
	}
	from, err := parseRuleTime(row.EffectiveFrom, commission.DefaultEffectiveFrom, false)
	if err != nil {
		return commission.Rule{}, err
	}
	to, err := parseRuleTime(row.EffectiveTo, commission.DefaultEffectiveTo, true)
	if err != nil {
		return commission.Rule{}, err
	}
	return commission.Rule{
		ID:            row.RuleID,
		Name:          row.Name,
		Condition:     cond,
		Mode:          commission.Mode(row.Mode),
		Value:         row.Value,
		Active:        row.Active,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}, nil
}

// parseRuleTime accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseRuleTime(raw string, fallback time.Time, endOfDay bool) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", value)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func ruleView(row ports.CommissionRule) RuleView {
	cond, err := commission.ParseCondition(row.ConditionJSON)
	if err != nil {
		cond = commission.Condition{}
	}
	return RuleView{
		RuleID:        row.RuleID,
		Name:          row.Name,
		Condition:     cond,
		Mode:          row.Mode,
		Value:         row.Value,
		Active:        row.Active,
		EffectiveFrom: row.EffectiveFrom,
		EffectiveTo:   row.EffectiveTo,
		CreatedAt:     row.CreatedAt,
	}
}
