package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerStore persists accounts and their append-only transaction log. Every
// mutation commits the balance change and the log entry atomically.
type LedgerStore interface {
	// CreateAccount creates an account, crediting openingBalance (if any)
	// with a welcome transaction. Returns ErrAlreadyExists on duplicates.
	CreateAccount(ctx context.Context, userID string, openingBalance int64) (Account, error)
	GetAccount(ctx context.Context, userID string) (Account, error)

	// Transfer applies a signed amount to the user's balance and appends a
	// transaction, as one atomic unit. A debit that would drive the balance
	// below zero fails with ErrInsufficientFunds and leaves no trace.
	Transfer(ctx context.Context, userID string, amount int64, kind TxKind, description string) (Transaction, error)

	// BulkCredit credits every account the same amount in a single database
	// transaction: either the whole batch lands or none of it does. Returns
	// the number of accounts credited.
	BulkCredit(ctx context.Context, amount int64, kind TxKind, description string) (int, error)

	// ClaimDaily credits the daily check-in bonus at most once per calendar
	// day per user. Returns ErrAlreadyClaimed on repeat claims.
	ClaimDaily(ctx context.Context, userID string, amount int64, day time.Time) (Transaction, error)

	ListTransactions(ctx context.Context, userID string, opts ListOpts) ([]Transaction, error)
	ListTransactionsByMarket(ctx context.Context, marketID string) ([]Transaction, error)
}

// MarketStore persists markets and their outcome pools.
type MarketStore interface {
	// Create persists an official market in the open state.
	Create(ctx context.Context, market Market, outcomeNames []string) (Market, error)

	// CreateWithListingFee persists a community market in draft_pending
	// state, debiting the listing fee from the creator in the same database
	// transaction. If the debit fails nothing is persisted.
	CreateWithListingFee(ctx context.Context, market Market, outcomeNames []string, fee int64) (Market, error)

	// ApproveDraft transitions draft_pending -> open.
	ApproveDraft(ctx context.Context, id string) (Market, error)
	// RejectDraft deletes a draft_pending market. The listing fee is kept.
	RejectDraft(ctx context.Context, id string) error

	// CloseExpired moves every open market whose close time has elapsed to
	// awaiting_resolution. Idempotent; returns the number of markets moved.
	CloseExpired(ctx context.Context, now time.Time) (int, error)

	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	ListResolvedSince(ctx context.Context, since time.Time) ([]Market, error)
	// MarkArchived stamps a resolved market as exported to the archive so
	// the next archive run skips it.
	MarkArchived(ctx context.Context, id string) error

	// Purge removes a non-resolved market and its bets/votes (test-data
	// cleanup). Resolved markets are refused: their financial trail is
	// retained indefinitely.
	Purge(ctx context.Context, id string) error
}

// BetStore persists bets. PlaceBet is the transactional admission path.
type BetStore interface {
	// PlaceBet re-validates market state, close time, the stake floor, the
	// single-sided rule and the bettor's funds, in that order, inside one
	// database transaction, then debits the balance, increments the outcome
	// pool, inserts the bet and appends the ledger entry. All four effects
	// commit together or not at all.
	PlaceBet(ctx context.Context, bet Bet, minStake int64) (Bet, error)

	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Bet, error)
	// ListAllByMarket returns every bet on a market, oldest first, with no
	// pagination cap. This is the settlement audit trail.
	ListAllByMarket(ctx context.Context, marketID string) ([]Bet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bet, error)
	// CountDistinctBettors returns how many distinct users ever bet on the
	// market. This is the dispute tally electorate.
	CountDistinctBettors(ctx context.Context, marketID string) (int, error)
}

// SettlementResult reports a completed payout run.
type SettlementResult struct {
	Market        Market
	Payouts       []Payout
	Distributable int64
	FeeAmount     int64
}

// FinalizeOutcome describes what Finalize did.
type FinalizeOutcome string

const (
	FinalizeUpheld          FinalizeOutcome = "upheld"
	FinalizeReverted        FinalizeOutcome = "reverted"
	FinalizeAlreadyResolved FinalizeOutcome = "already_resolved"
)

// FinalizeResult reports the outcome of finalizing a disputed resolution.
type FinalizeResult struct {
	Outcome         FinalizeOutcome
	Market          Market
	Payouts         []Payout
	VotesAgainst    int
	DistinctBettors int
	StakeReturned   int64
	CreatorBonus    int64
}

// ResolutionStore implements the two resolution state machines and the payout
// disbursement, each method a single database transaction.
type ResolutionStore interface {
	// ResolveAndPay is the administrator override: valid from any
	// non-resolved, non-draft state, it records the winning outcome and
	// evidence, pays every winner and marks the market resolved, atomically.
	// Re-running on a resolved market returns ErrInvalidState with no
	// side effects.
	ResolveAndPay(ctx context.Context, marketID, outcomeID, evidence string) (SettlementResult, error)

	// ProposeResolution is the creator-staked path: it locks the creator's
	// entire current balance as stake (a zero balance yields a zero-value
	// stake) and moves the market into the dispute phase until disputeEndsAt.
	ProposeResolution(ctx context.Context, marketID, outcomeID, evidence, creator string, disputeEndsAt time.Time) (Market, error)

	// InsertVote records a dispute vote after checking, in order, market
	// state, voter eligibility (has a bet) and vote uniqueness.
	InsertVote(ctx context.Context, marketID, voter string) (DisputeVote, error)

	// Finalize tallies the dispute once the challenge window has elapsed and
	// either settles (payout + stake return + creator bonus) or reverts the
	// market to awaiting_resolution, forfeiting the stake. The state
	// transition is claimed inside the transaction, so concurrent calls
	// produce exactly one settlement. Before the window ends it returns
	// ErrChallengeWindowOpen; on an already-resolved market it is a no-op
	// reporting FinalizeAlreadyResolved.
	Finalize(ctx context.Context, marketID string, now time.Time, creatorBonusBps int) (FinalizeResult, error)
}
