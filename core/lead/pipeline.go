package lead

import "github.com/pkg/errors"

var (
	ErrInvalidTransition = errors.New("invalid priority change")
	ErrUnitRequired      = errors.New("a unit is required for this priority")
)

// CanTransition reports whether a lead may move from one priority to another.
// Closing is terminal; lost leads may only be re-opened as cold, warm or hot.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case PriorityClosing:
		return false
	case PriorityLost:
		return to == PriorityCold || to == PriorityWarm || to == PriorityHot
	}
	return PriorityRank(to) > 0
}

// HoldsUnit reports whether a lead at priority p keeps its unit out of the available stock.
func HoldsUnit(p string) bool {
	return p == PriorityBooking || p == PriorityClosing
}

// NextPriorities lists where a lead at priority p may go next.
func NextPriorities(p string) []string {
	next := make([]string, 0, len(AllPriorities))
	for _, to := range AllPriorities {
		if to != p && CanTransition(p, to) {
			next = append(next, to)
		}
	}
	return next
}
