package order

// transitions lists the statuses reachable from each status. Cancelled and
// refunded orders are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether an order may move from one status to another.
// Staying in the same status is allowed so notes and tracking can be edited.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RestoresStock reports whether moving from one status to another returns the
// ordered units to inventory. Goods that never left the warehouse go back on
// cancel or refund; shipped goods do not.
func RestoresStock(from, to Status) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusRefunded:
		return from == StatusPending || from == StatusProcessing
	}
	return false
}

// Next returns the statuses reachable from s.
func (s Status) Next() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}
