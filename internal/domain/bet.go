package domain

import "time"

// Bet is one user's stake on one outcome. Amount is immutable once created.
// A user may hold several bets on the same outcome (top-ups) but never bets
// on two different outcomes of the same market.
type Bet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MarketID  string    `json:"market_id"`
	OutcomeID string    `json:"outcome_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// AdmissionState is the market-side state a bet is admitted against: the
// market row read under lock plus the outcomes the bettor already holds on
// this market.
type AdmissionState struct {
	Status       MarketStatus
	CloseTime    time.Time
	Creator      *string
	HeldOutcomes []string
}

// CheckAdmission applies the bet preconditions in their contractual order:
// market open, stake floor, creator exclusion, single-sided rule. Each
// failure is a distinct sentinel; the first violated precondition wins.
// Funds are checked last, by the ledger, when the debit is applied.
func CheckAdmission(state AdmissionState, bet Bet, minStake int64, now time.Time) error {
	if state.Status != MarketOpen || !now.Before(state.CloseTime) {
		return ErrMarketClosed
	}
	if bet.Amount < minStake {
		return ErrStakeTooSmall
	}
	if state.Creator != nil && *state.Creator == bet.UserID {
		return ErrCreatorCannotBet
	}
	for _, held := range state.HeldOutcomes {
		if held != bet.OutcomeID {
			return ErrSingleSided
		}
	}
	return nil
}
