package model

// All lists every table model in migration order.
func All() []any {
	return []any{
		&User{},
		&Rep{},
		&Hospital{},
		&Surgeon{},
		&Procedure{},
		&Attachment{},
		&CommissionRule{},
		&Commission{},
		&AuditLog{},
		&KVCache{},
	}
}
