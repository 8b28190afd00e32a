package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDisputed, true},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusDisputed, true},

		{StatusPending, StatusPaid, false}, // must be approved first
		{StatusPaid, StatusApproved, false},
		{StatusPaid, StatusDisputed, false}, // paid is terminal
		{StatusPaid, StatusPending, false},
		{StatusDisputed, StatusPending, false}, // only via Reopen
		{StatusDisputed, StatusApproved, false},
		{StatusDisputed, StatusPaid, false},
		{StatusApproved, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, (&Record{Status: StatusPaid}).IsTerminal())
	assert.False(t, (&Record{Status: StatusDisputed}).IsTerminal())
	assert.False(t, (&Record{Status: StatusPending}).IsTerminal())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusPaid))
	assert.False(t, ValidStatus("refunded"))
}
