package model

type Hospital struct {
	HospitalID uint64 `gorm:"column:hospital_id;primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;type:text;not null;uniqueIndex"`
	Address    string `gorm:"column:address;type:text;not null;default:''"`
	GeoLat     string `gorm:"column:geo_lat;type:text;not null;default:''"`
	GeoLng     string `gorm:"column:geo_lng;type:text;not null;default:''"`
}

func (Hospital) TableName() string {
	return "hospitals"
}

type Surgeon struct {
	SurgeonID  uint64 `gorm:"column:surgeon_id;primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;type:text;not null"`
	HospitalID uint64 `gorm:"column:hospital_id;not null;index"`
}

func (Surgeon) TableName() string {
	return "surgeons"
}
