package commission

import "errors"

var (
	ErrRuleNameRequired      = errors.New("rule name is required")
	ErrInvalidMode           = errors.New("invalid commission mode")
	ErrNegativeValue         = errors.New("commission value must not be negative")
	ErrInvalidWindow         = errors.New("effective_from is after effective_to")
	ErrUnknownAttribute      = errors.New("unknown procedure attribute")
	ErrInvalidConditionValue = errors.New("condition value must be a string, number or boolean")
	ErrInvalidConditionJSON  = errors.New("invalid JSON")
	ErrEmptyCondition        = errors.New("rule condition is empty")
	ErrInvalidPolicy         = errors.New("invalid empty condition policy")
)
