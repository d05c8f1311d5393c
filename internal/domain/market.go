// Package domain defines the core entities of the settlement engine (markets,
// outcomes, bets, ledger accounts, dispute votes) together with the store and
// cache interfaces their persistence layers implement, and the sentinel errors
// the service layer maps to API responses.
package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	// MarketDraftPending is a community market awaiting moderation.
	MarketDraftPending MarketStatus = "draft_pending"
	// MarketOpen accepts bets until the close time elapses.
	MarketOpen MarketStatus = "open"
	// MarketAwaitingResolution is closed for betting and waiting for a
	// resolution proposal (admin or creator).
	MarketAwaitingResolution MarketStatus = "awaiting_resolution"
	// MarketDisputePhase has a creator-proposed resolution under challenge.
	MarketDisputePhase MarketStatus = "dispute_phase"
	// MarketResolved is terminal: winners have been paid.
	MarketResolved MarketStatus = "resolved"
)

// Market is a proposition to be settled across mutually exclusive outcomes.
// A nil Creator marks an official (admin-published) market.
type Market struct {
	ID          string       `json:"id"`
	Question    string       `json:"question"`
	Description string       `json:"description"`
	Status      MarketStatus `json:"status"`
	CloseTime   time.Time    `json:"close_time"`
	Creator     *string      `json:"creator,omitempty"`
	FeeBps      int          `json:"fee_bps"`

	// Resolution state. ResolvedOutcomeID is set iff Status is resolved,
	// except during a dispute phase where it carries the proposed winner.
	ResolvedOutcomeID *string    `json:"resolved_outcome_id,omitempty"`
	Evidence          string     `json:"evidence,omitempty"`
	StakedAmount      int64      `json:"staked_amount"`
	DisputeEndsAt     *time.Time `json:"dispute_ends_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Outcome is one exclusive settlement branch of a market. Pool accumulates
// the stakes wagered on it. Probability is derived from the pool shares on
// read; it is never persisted.
type Outcome struct {
	ID          string  `json:"id"`
	MarketID    string  `json:"market_id"`
	Name        string  `json:"name"`
	Pool        int64   `json:"pool"`
	Position    int     `json:"position"`
	Probability float64 `json:"probability"`
}

// IsOfficial reports whether the market was published by an administrator.
func (m Market) IsOfficial() bool {
	return m.Creator == nil
}

// CreatedBy reports whether userID is the market's creator.
func (m Market) CreatedBy(userID string) bool {
	return m.Creator != nil && *m.Creator == userID
}

// AcceptsBets reports whether a bet may be admitted at the given instant.
// The close-time check is deliberately independent of the status field: a
// market whose sweep is overdue must still reject bets.
func (m Market) AcceptsBets(now time.Time) bool {
	return m.Status == MarketOpen && now.Before(m.CloseTime)
}

// TotalPool returns the sum of all outcome pools.
func (m Market) TotalPool() int64 {
	var total int64
	for _, o := range m.Outcomes {
		total += o.Pool
	}
	return total
}

// FillProbabilities recomputes each outcome's implied probability as its
// share of the total pool. All zero while no money is in the market.
func (m *Market) FillProbabilities() {
	total := m.TotalPool()
	for i := range m.Outcomes {
		if total == 0 {
			m.Outcomes[i].Probability = 0
			continue
		}
		m.Outcomes[i].Probability = float64(m.Outcomes[i].Pool) / float64(total)
	}
}
