package domain

import "time"

// TxKind classifies a ledger transaction.
type TxKind string

const (
	TxBet          TxKind = "BET"
	TxPayout       TxKind = "PAYOUT"
	TxTransfer     TxKind = "TRANSFER"
	TxAirdrop      TxKind = "AIRDROP"
	TxCheckIn      TxKind = "CHECKIN"
	TxFee          TxKind = "FEE"
	TxRefund       TxKind = "REFUND"
	TxStakeLock    TxKind = "STAKE_LOCK"
	TxStakeReturn  TxKind = "STAKE_RETURN"
	TxCreatorBonus TxKind = "CREATOR_BONUS"
)

// Account holds a user's spendable balance. The balance is always equal to
// the sum of the user's transaction amounts; both are only ever mutated
// together inside a single database transaction.
type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable audit entry for one balance change. Amount is
// signed: debits are negative. MarketID links settlement-related entries to
// the market that caused them.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int64     `json:"amount"`
	Kind        TxKind    `json:"kind"`
	Description string    `json:"description"`
	MarketID    *string   `json:"market_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
