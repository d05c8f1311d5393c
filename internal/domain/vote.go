package domain

import "time"

// DisputeVote records a single bettor's objection to a creator-submitted
// resolution. At most one vote per (market, voter).
type DisputeVote struct {
	MarketID  string    `json:"market_id"`
	Voter     string    `json:"voter"`
	CreatedAt time.Time `json:"created_at"`
}

// TallyResult is the verdict of a dispute tally.
type TallyResult string

const (
	TallyUpheld   TallyResult = "upheld"
	TallyReverted TallyResult = "reverted"
)

// Tally applies the majority rule over the set of distinct bettors on a
// market: the proposed resolution is reverted only when strictly more than
// half of them voted against it. Abstentions count in the creator's favor.
func Tally(votesAgainst, distinctBettors int) TallyResult {
	if distinctBettors > 0 && votesAgainst*2 > distinctBettors {
		return TallyReverted
	}
	return TallyUpheld
}
