package model

type CommissionRule struct {
	RuleID        uint64  `gorm:"column:rule_id;primaryKey;autoIncrement"`
	Name          string  `gorm:"column:name;type:text;not null"`
	ConditionJSON string  `gorm:"column:condition_json;type:text;not null"`
	Mode          string  `gorm:"column:mode;type:text;not null;default:percentage"`
	Value         float64 `gorm:"column:value;not null;default:0"`
	Active        bool    `gorm:"column:active;not null"`
	EffectiveFrom string  `gorm:"column:effective_from;type:text;not null"`
	EffectiveTo   string  `gorm:"column:effective_to;type:text;not null"`
	CreatedAt     string  `gorm:"column:created_at;type:text;not null"`
}

func (CommissionRule) TableName() string {
	return "commission_rules"
}
