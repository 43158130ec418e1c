package services

import (
	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/models"
)

// validTransitions is the whole payment state machine. Terminal states map
// to an empty set.
var validTransitions = map[models.PaymentState][]models.PaymentState{
	models.PaymentStateInitiated: {models.PaymentStatePending},
	models.PaymentStatePending:   {models.PaymentStateSuccess, models.PaymentStateFailed},
	models.PaymentStateSuccess:   {},
	models.PaymentStateFailed:    {},
}

// IsAllowed reports whether a payment in current may move to target.
func IsAllowed(current, target models.PaymentState) bool {
	for _, next := range validTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransition error naming both states
// when the move is not in the table.
func ValidateTransition(current, target models.PaymentState) error {
	if IsAllowed(current, target) {
		return nil
	}
	return apperr.InvalidTransitionErr(string(current), string(target))
}

func IsTerminal(state models.PaymentState) bool {
	next, known := validTransitions[state]
	return known && len(next) == 0
}
