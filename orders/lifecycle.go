package orders

import (
	"myhomeneeds/apperr"
	"myhomeneeds/models"
)

// transitions lists every allowed edge. Statuses with no outgoing edge are
// terminal.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:  {models.StatusAccepted, models.StatusDeclined},
	models.StatusAccepted: {models.StatusCompleted},
}

var known = map[models.OrderStatus]bool{
	models.StatusPending:   true,
	models.StatusAccepted:  true,
	models.StatusDeclined:  true,
	models.StatusCompleted: true,
}

func ParseStatus(s string) (models.OrderStatus, error) {
	st := models.OrderStatus(s)
	if !known[st] {
		return "", apperr.Newf(apperr.Validation, "orders.ParseStatus", "unknown status %q", s)
	}
	return st, nil
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.OrderStatus) bool {
	return known[s] && len(transitions[s]) == 0
}

// checkTransition validates from -> to. Same-state requests are reported
// with noop=true and no error.
func checkTransition(from, to models.OrderStatus) (noop bool, err error) {
	if from == to {
		return true, nil
	}
	if IsTerminal(from) {
		return false, apperr.Newf(apperr.Validation, "orders.Transition", "order is %s and can no longer change", from)
	}
	if !CanTransition(from, to) {
		return false, apperr.Newf(apperr.Validation, "orders.Transition", "cannot move order from %s to %s", from, to)
	}
	return false, nil
}
