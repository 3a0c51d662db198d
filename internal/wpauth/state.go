package wpauth

// State is a node in the Auth Manager's finite-state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateNeedsLogin     State = "needs_login"
	StateActive         State = "active"
	StateRefreshing     State = "refreshing"
	StateFailed         State = "failed"
)

// validTransitions enumerates the FSM's edges. A static credential
// (AppPassword, Basic) only ever needs Uninitialized -> Active.
var validTransitions = map[State][]State{
	StateUninitialized: {StateActive, StateNeedsLogin, StateFailed},
	StateNeedsLogin:    {StateActive, StateFailed},
	StateActive:        {StateRefreshing, StateNeedsLogin, StateFailed},
	StateRefreshing:     {StateActive, StateNeedsLogin, StateFailed},
	StateFailed:        {}, // terminal
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
