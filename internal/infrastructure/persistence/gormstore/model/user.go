package model

type User struct {
	UserID         uint64 `gorm:"column:user_id;primaryKey;autoIncrement"`
	Email          string `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName       string `gorm:"column:full_name;type:text;not null"`
	HashedPassword string `gorm:"column:hashed_password;type:text;not null"`
	Role           string `gorm:"column:role;type:text;not null;default:rep"`
	IsActive       bool   `gorm:"column:is_active;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
}

func (User) TableName() string {
	return "users"
}

type Rep struct {
	RepID     uint64 `gorm:"column:rep_id;primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"column:user_id;not null;uniqueIndex"`
	Territory string `gorm:"column:territory;type:text;not null;default:''"`
}

func (Rep) TableName() string {
	return "reps"
}
