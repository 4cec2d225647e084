package core

import "time"

// Status is the terminal state of one device's deployment attempt.
type Status uint8

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
	// StatusCancelled means the attempt never started because its batch was stopped.
	StatusCancelled
	// StatusTerminated means the attempt was forcibly aborted mid-flight.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) Status {
	switch s {
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	case "terminated":
		return StatusTerminated
	default:
		return StatusPending
	}
}

// Outcome is the result of one device's deployment attempt.
type Outcome struct {
	Device   string
	Status   Status
	Lines    []string
	Err      error
	Started  time.Time
	Finished time.Time
}
