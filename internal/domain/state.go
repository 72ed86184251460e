package domain

// RequestState is the lifecycle of one gated generation request.
type RequestState string

const (
	StatePending    RequestState = "pending"
	StateAllowed    RequestState = "allowed"
	StateDenied     RequestState = "denied"
	StateGenerating RequestState = "generating"
	StateSucceeded  RequestState = "succeeded"
	StateFailed     RequestState = "failed"
	StateRecorded   RequestState = "recorded"
	StateTerminated RequestState = "terminated"
)

func (s RequestState) String() string {
	return string(s)
}

// Terminal returns true if no further transitions are possible.
func (s RequestState) Terminal() bool {
	switch s {
	case StateFailed, StateRecorded, StateTerminated:
		return true
	}
	return false
}

// CanTransitionTo checks if the request can move to the target state.
//
// Valid transitions:
// - pending -> allowed | denied
// - allowed -> generating
// - generating -> succeeded | failed
// - succeeded -> recorded
// - denied -> terminated
func (s RequestState) CanTransitionTo(target RequestState) bool {
	switch s {
	case StatePending:
		return target == StateAllowed || target == StateDenied
	case StateAllowed:
		return target == StateGenerating
	case StateGenerating:
		return target == StateSucceeded || target == StateFailed
	case StateSucceeded:
		return target == StateRecorded
	case StateDenied:
		return target == StateTerminated
	}
	return false
}

// RequestLifecycle tracks the state of a single request.
type RequestLifecycle struct {
	State RequestState
}

// NewRequestLifecycle returns a lifecycle in the pending state.
func NewRequestLifecycle() *RequestLifecycle {
	return &RequestLifecycle{State: StatePending}
}

// Advance moves the lifecycle to target, leaving it unchanged on an illegal
// transition.
func (l *RequestLifecycle) Advance(target RequestState) error {
	if !l.State.CanTransitionTo(target) {
		return Errorf(EINTERNAL, "request.advance", "cannot transition from %s to %s", l.State, target)
	}
	l.State = target
	return nil
}
