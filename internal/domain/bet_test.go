package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func openState(outcomes ...string) AdmissionState {
	return AdmissionState{
		Status:       MarketOpen,
		CloseTime:    time.Now().Add(time.Hour),
		HeldOutcomes: outcomes,
	}
}

func TestCheckAdmission_Admits(t *testing.T) {
	err := CheckAdmission(openState(), Bet{UserID: "u1", OutcomeID: "a", Amount: 100}, 1, time.Now())

	assert.NoError(t, err)
}

func TestCheckAdmission_ClosedMarket(t *testing.T) {
	state := openState()
	state.Status = MarketAwaitingResolution

	err := CheckAdmission(state, Bet{UserID: "u1", OutcomeID: "a", Amount: 100}, 1, time.Now())

	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestCheckAdmission_AtCloseTime(t *testing.T) {
	// The close-time check is stronger than the status field: an overdue
	// sweep must not keep the market bettable.
	now := time.Now()
	state := openState()
	state.CloseTime = now

	err := CheckAdmission(state, Bet{UserID: "u1", OutcomeID: "a", Amount: 100}, 1, now)

	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestCheckAdmission_ClosedMarketBeforeStakeFloor(t *testing.T) {
	// Both preconditions violated: the closed market is reported, not the
	// stake floor.
	state := openState()
	state.Status = MarketResolved

	err := CheckAdmission(state, Bet{UserID: "u1", OutcomeID: "a", Amount: 5}, 10, time.Now())

	assert.ErrorIs(t, err, ErrMarketClosed)
}

func TestCheckAdmission_StakeBelowFloor(t *testing.T) {
	err := CheckAdmission(openState(), Bet{UserID: "u1", OutcomeID: "a", Amount: 9}, 10, time.Now())

	assert.ErrorIs(t, err, ErrStakeTooSmall)
}

func TestCheckAdmission_StakeExactlyAtFloor(t *testing.T) {
	err := CheckAdmission(openState(), Bet{UserID: "u1", OutcomeID: "a", Amount: 10}, 10, time.Now())

	assert.NoError(t, err)
}

func TestCheckAdmission_CreatorExcluded(t *testing.T) {
	creator := "u1"
	state := openState()
	state.Creator = &creator

	err := CheckAdmission(state, Bet{UserID: "u1", OutcomeID: "a", Amount: 100}, 1, time.Now())

	assert.ErrorIs(t, err, ErrCreatorCannotBet)
}

func TestCheckAdmission_SingleSided(t *testing.T) {
	// A user already holding outcome "a" may not bet on "b" in the same
	// market.
	err := CheckAdmission(openState("a"), Bet{UserID: "u1", OutcomeID: "b", Amount: 100}, 1, time.Now())

	assert.ErrorIs(t, err, ErrSingleSided)
}

func TestCheckAdmission_SameOutcomeTopUp(t *testing.T) {
	err := CheckAdmission(openState("a"), Bet{UserID: "u1", OutcomeID: "a", Amount: 100}, 1, time.Now())

	assert.NoError(t, err)
}
