package holiday

import "errors"

var (
	ErrRuleNotFound      = errors.New("rule not found")
	ErrRuleExists        = errors.New("rule id already used")
	ErrNotDeletable      = errors.New("only custom rules can be deleted")
	ErrNotResettable     = errors.New("only shipped default rules can be reset")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrInvalidTransition = errors.New("invalid change transition")
	ErrStaleState        = errors.New("rule changed since it was read")
	ErrUnknownDefaults   = errors.New("no default rules for region")
	ErrInvalidRegion     = errors.New("invalid region code")
)
