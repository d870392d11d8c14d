package checkout

import (
	"fmt"
	"strings"
)

// Status is the backend's payment status for an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// ParseStatus maps the backend string onto the closed set of statuses.
// Anything else is an error so it is logged instead of silently treated as
// pending.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled, StatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("unrecognized payment status %q", s)
	}
}

func (s Status) Terminal() bool {
	return s != StatusPending
}

// NormalizeOrderID strips the display prefix so "ORD_42" and "42" look up
// the same order.
func NormalizeOrderID(id, prefix string) string {
	id = strings.TrimSpace(id)
	if prefix != "" {
		id = strings.TrimPrefix(id, prefix)
	}
	return id
}

// State is the poll session state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateConfirmed
	StateFailed
	StateCancelled
	StateExpired
	StateTimedOut
	StateUnauthorized
)

var stateNames = map[State]string{
	StateIdle:         "IDLE",
	StatePolling:      "POLLING",
	StateConfirmed:    "CONFIRMED",
	StateFailed:       "FAILED",
	StateCancelled:    "CANCELLED",
	StateExpired:      "EXPIRED",
	StateTimedOut:     "TIMED_OUT",
	StateUnauthorized: "UNAUTHORIZED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) Terminal() bool {
	return s != StateIdle && s != StatePolling
}

func stateFor(st Status) State {
	switch st {
	case StatusPaid:
		return StateConfirmed
	case StatusFailed:
		return StateFailed
	case StatusCancelled:
		return StateCancelled
	case StatusExpired:
		return StateExpired
	default:
		return StatePolling
	}
}
