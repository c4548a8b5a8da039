package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPauseMachineTransitions(t *testing.T) {
	sm := NewPauseMachine()

	assert.True(t, sm.CanTransition(StatusActive, StatusPaused))
	assert.True(t, sm.CanTransition(StatusPaused, StatusActive))
	assert.False(t, sm.CanTransition(StatusActive, StatusActive))
	assert.False(t, sm.CanTransition(StatusPaused, StatusPaused))
	assert.False(t, sm.CanTransition("UNKNOWN", StatusActive))
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewPauseMachine()

	assert.Equal(t, []string{StatusPaused}, sm.GetAllowedTransitions(StatusActive))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusPaused, StatusOf(true))
	assert.Equal(t, StatusActive, StatusOf(false))
}
