package model

type AuditLog struct {
	AuditID   uint64 `gorm:"column:audit_id;primaryKey;autoIncrement"`
	Actor     string `gorm:"column:actor;type:text;not null"`
	Action    string `gorm:"column:action;type:text;not null;index"`
	Entity    string `gorm:"column:entity;type:text;not null"`
	EntityID  string `gorm:"column:entity_id;type:text;not null"`
	Details   string `gorm:"column:details;type:text;not null;default:''"`
	CreatedAt string `gorm:"column:created_at;type:text;not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
