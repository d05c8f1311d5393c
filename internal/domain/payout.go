package domain

import "sort"

// Payout is one winner's share of a settled pool.
type Payout struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// bpsDenominator is the scale for fee and bonus rates expressed in basis points.
const bpsDenominator = 10000

// FeeAmount returns the platform cut of a pool at the given fee rate.
func FeeAmount(totalPool int64, feeBps int) int64 {
	if feeBps <= 0 || totalPool <= 0 {
		return 0
	}
	return totalPool * int64(feeBps) / bpsDenominator
}

// BonusAmount returns a creator bonus of bonusBps over the total pool.
func BonusAmount(totalPool int64, bonusBps int) int64 {
	if bonusBps <= 0 || totalPool <= 0 {
		return 0
	}
	return totalPool * int64(bonusBps) / bpsDenominator
}

// ComputePayouts distributes the fee-adjusted total pool among the bettors on
// the winning outcome, proportionally to their stake on it. Bets from the same
// user are aggregated first so each winner receives exactly one payout.
//
// Integer division floors each share, so the sum of payouts never exceeds the
// distributable amount; the dust left by rounding stays in the house. Results
// are ordered by user ID for deterministic settlement runs.
func ComputePayouts(bets []Bet, winningOutcomeID string, totalPool int64, feeBps int) []Payout {
	stakes := make(map[string]int64)
	var winPool int64
	for _, b := range bets {
		if b.OutcomeID != winningOutcomeID {
			continue
		}
		stakes[b.UserID] += b.Amount
		winPool += b.Amount
	}
	if winPool == 0 || totalPool == 0 {
		return nil
	}

	distributable := totalPool - FeeAmount(totalPool, feeBps)

	users := make([]string, 0, len(stakes))
	for u := range stakes {
		users = append(users, u)
	}
	sort.Strings(users)

	payouts := make([]Payout, 0, len(users))
	for _, u := range users {
		amount := stakes[u] * distributable / winPool
		if amount <= 0 {
			continue
		}
		payouts = append(payouts, Payout{UserID: u, Amount: amount})
	}
	return payouts
}
