package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTally_MajorityAgainstReverts(t *testing.T) {
	assert.Equal(t, TallyReverted, Tally(2, 3))
	assert.Equal(t, TallyReverted, Tally(3, 4))
}

func TestTally_ExactHalfUpholds(t *testing.T) {
	assert.Equal(t, TallyUpheld, Tally(2, 4))
}

func TestTally_NoVotesUpholds(t *testing.T) {
	assert.Equal(t, TallyUpheld, Tally(0, 5))
}

func TestTally_NoBettorsUpholds(t *testing.T) {
	// A market nobody bet on cannot be reverted.
	assert.Equal(t, TallyUpheld, Tally(0, 0))
}

func TestTally_MinorityAgainstUpholds(t *testing.T) {
	assert.Equal(t, TallyUpheld, Tally(1, 3))
}
