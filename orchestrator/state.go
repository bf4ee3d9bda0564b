package orchestrator

// runState tracks the orchestrator's position in the plan/call/observe loop.
// Transitions: idle -> planning -> (invoking -> planning)* -> concluding ->
// done, with failed reachable from planning and invoking.
type runState int

const (
	stateIdle runState = iota
	statePlanning
	stateInvoking
	stateConcluding
	stateDone
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePlanning:
		return "planning"
	case stateInvoking:
		return "invoking"
	case stateConcluding:
		return "concluding"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
