package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMarket_IsOfficial(t *testing.T) {
	creator := "u1"

	assert.True(t, Market{}.IsOfficial())
	assert.False(t, Market{Creator: &creator}.IsOfficial())
}

func TestMarket_CreatedBy(t *testing.T) {
	creator := "u1"
	m := Market{Creator: &creator}

	assert.True(t, m.CreatedBy("u1"))
	assert.False(t, m.CreatedBy("u2"))
	assert.False(t, Market{}.CreatedBy("u1"))
}

func TestMarket_AcceptsBets(t *testing.T) {
	now := time.Now()
	m := Market{Status: MarketOpen, CloseTime: now.Add(time.Hour)}

	assert.True(t, m.AcceptsBets(now))
}

func TestMarket_AcceptsBets_PastCloseTime(t *testing.T) {
	// An overdue sweep must not keep the market bettable.
	now := time.Now()
	m := Market{Status: MarketOpen, CloseTime: now.Add(-time.Minute)}

	assert.False(t, m.AcceptsBets(now))
}

func TestMarket_AcceptsBets_WrongStatus(t *testing.T) {
	now := time.Now()
	closeTime := now.Add(time.Hour)

	for _, status := range []MarketStatus{
		MarketDraftPending,
		MarketAwaitingResolution,
		MarketDisputePhase,
		MarketResolved,
	} {
		m := Market{Status: status, CloseTime: closeTime}
		assert.False(t, m.AcceptsBets(now), "status %s", status)
	}
}

func TestMarket_TotalPool(t *testing.T) {
	m := Market{Outcomes: []Outcome{{Pool: 100}, {Pool: 250}, {Pool: 0}}}

	assert.Equal(t, int64(350), m.TotalPool())
}

func TestMarket_TotalPool_NoOutcomes(t *testing.T) {
	assert.Equal(t, int64(0), Market{}.TotalPool())
}

func TestMarket_FillProbabilities(t *testing.T) {
	m := Market{Outcomes: []Outcome{{Pool: 100}, {Pool: 300}}}

	m.FillProbabilities()

	assert.InDelta(t, 0.25, m.Outcomes[0].Probability, 1e-9)
	assert.InDelta(t, 0.75, m.Outcomes[1].Probability, 1e-9)
}

func TestMarket_FillProbabilities_EmptyPools(t *testing.T) {
	m := Market{Outcomes: []Outcome{{Pool: 0}, {Pool: 0}}}

	m.FillProbabilities()

	assert.Zero(t, m.Outcomes[0].Probability)
	assert.Zero(t, m.Outcomes[1].Probability)
}
