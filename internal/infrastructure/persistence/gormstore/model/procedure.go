package model

type Procedure struct {
	ProcedureID   uint64  `gorm:"column:procedure_id;primaryKey;autoIncrement"`
	RepID         uint64  `gorm:"column:rep_id;not null;index"`
	RepName       string  `gorm:"column:rep_name;type:text;not null"`
	Hospital      string  `gorm:"column:hospital;type:text;not null"`
	Surgeon       string  `gorm:"column:surgeon;type:text;not null;default:''"`
	ProcedureType string  `gorm:"column:procedure_type;type:text;not null;index"`
	Date          string  `gorm:"column:date;type:text;not null;index"`
	Revenue       float64 `gorm:"column:revenue;not null;default:0"`
	Notes         string  `gorm:"column:notes;type:text;not null;default:''"`
	Status        string  `gorm:"column:status;type:text;not null;default:pending;index"`
	CreatedAt     string  `gorm:"column:created_at;type:text;not null;index"`
}

func (Procedure) TableName() string {
	return "procedures"
}

type Attachment struct {
	AttachmentID uint64 `gorm:"column:attachment_id;primaryKey;autoIncrement"`
	ProcedureID  uint64 `gorm:"column:procedure_id;not null;index"`
	Filename     string `gorm:"column:filename;type:text;not null"`
	Location     string `gorm:"column:location;type:text;not null"`
	UploadedAt   string `gorm:"column:uploaded_at;type:text;not null"`
}

func (Attachment) TableName() string {
	return "attachments"
}

type Commission struct {
	CommissionID uint64  `gorm:"column:commission_id;primaryKey;autoIncrement"`
	ProcedureID  uint64  `gorm:"column:procedure_id;not null;uniqueIndex"`
	RepID        uint64  `gorm:"column:rep_id;not null;index"`
	Amount       float64 `gorm:"column:amount;not null"`
	CalculatedAt string  `gorm:"column:calculated_at;type:text;not null"`
}

func (Commission) TableName() string {
	return "commissions"
}
