package ports

import (
	"context"
	"errors"
)

var ErrRuleNotFound = errors.New("commission rule not found")

type CommissionRule struct {
	RuleID        uint64
	Name          string
	ConditionJSON string
	Mode          string
	Value         float64
	Active        bool
	EffectiveFrom string
	EffectiveTo   string
	CreatedAt     string
}

type RuleRepository interface {
	CreateRule(ctx context.Context, rule CommissionRule) (CommissionRule, error)
	GetRule(ctx context.Context, ruleID uint64) (CommissionRule, error)
	ListRules(ctx context.Context) ([]CommissionRule, error)
	SetRuleActive(ctx context.Context, ruleID uint64, active bool) error
}
