package domain

import "fmt"

// RequestStatus drives both the friend-request and join-request state
// machines: pending -> accepted | rejected, with no way out of a terminal
// state.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseDecision accepts the two resolution verbs and their status names.
func ParseDecision(raw string) (RequestStatus, error) {
	switch raw {
	case "accept", string(StatusAccepted):
		return StatusAccepted, nil
	case "reject", string(StatusRejected):
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: decision must be accept or reject", ErrInvalidInput)
}

// Transition returns the status reached by applying decision to s.
func (s RequestStatus) Transition(decision RequestStatus) (RequestStatus, error) {
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: request is %s", ErrRequestResolved, s)
	}
	if s != StatusPending || !decision.IsTerminal() {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, decision)
	}
	return decision, nil
}
