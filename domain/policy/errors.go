package policy

import "errors"

// Domain errors for task budget enforcement (§3 maxDuration/maxTokens).
var (
	// ErrBudgetExceeded indicates the budget limit has been exceeded.
	ErrBudgetExceeded = errors.New("budget exceeded")
)
