package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/ports"
)

type RuleRepository struct {
	db *gorm.DB
}

var _ ports.RuleRepository = (*RuleRepository)(nil)

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) CreateRule(ctx context.Context, rule ports.CommissionRule) (ports.CommissionRule, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.CommissionRule{}, err
	}

	row := model.CommissionRule{
		Name:          rule.Name,
		ConditionJSON: rule.ConditionJSON,
		Mode:          rule.Mode,
		Value:         rule.Value,
		Active:        rule.Active,
		EffectiveFrom: rule.EffectiveFrom,
		EffectiveTo:   rule.EffectiveTo,
		CreatedAt:     rule.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.CommissionRule{}, errs.Wrap(err, "insert commission rule")
	}
	return mapRule(row), nil
}

func (r *RuleRepository) GetRule(ctx context.Context, ruleID uint64) (ports.CommissionRule, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.CommissionRule{}, err
	}

	var row model.CommissionRule
	if err := db.Where("rule_id = ?", ruleID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CommissionRule{}, ports.ErrRuleNotFound
		}
		return ports.CommissionRule{}, errs.Wrap(err, "query commission rule")
	}
	return mapRule(row), nil
}

func (r *RuleRepository) ListRules(ctx context.Context) ([]ports.CommissionRule, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.CommissionRule
	if err := db.Order("rule_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query commission rules")
	}

	items := make([]ports.CommissionRule, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRule(row))
	}
	return items, nil
}

func (r *RuleRepository) SetRuleActive(ctx context.Context, ruleID uint64, active bool) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.CommissionRule{}).
		Where("rule_id = ?", ruleID).
		Update("active", active)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update commission rule active flag")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRuleNotFound
	}
	return nil
}

func mapRule(row model.CommissionRule) ports.CommissionRule {
	return ports.CommissionRule{
		RuleID:        row.RuleID,
		Name:          row.Name,
		ConditionJSON: row.ConditionJSON,
		Mode:          row.Mode,
		Value:         row.Value,
		Active:        row.Active,
		EffectiveFrom: row.EffectiveFrom,
		EffectiveTo:   row.EffectiveTo,
		CreatedAt:     row.CreatedAt,
	}
}
