package workflows

// Issuer statuses.
const (
	StatusActive = "ACTIVE"
	StatusPaused = "PAUSED"
)

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine with the given allowed transitions
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewPauseMachine returns the issuer pause switch: ACTIVE and PAUSED toggle
// into each other and nothing else.
func NewPauseMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		StatusActive: {StatusPaused},
		StatusPaused: {StatusActive},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// StatusOf maps the paused flag to its status name.
func StatusOf(paused bool) string {
	if paused {
		return StatusPaused
	}
	return StatusActive
}
