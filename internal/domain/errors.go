package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")

	// Ledger errors.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyClaimed    = errors.New("daily bonus already claimed")

	// Bet admission errors, in precondition order.
	ErrMarketClosed     = errors.New("market closed for betting")
	ErrStakeTooSmall    = errors.New("stake below minimum")
	ErrCreatorCannotBet = errors.New("creator cannot bet on own market")
	ErrSingleSided      = errors.New("already bet on a different outcome")

	// Resolution errors.
	ErrInvalidState        = errors.New("operation invalid for market state")
	ErrNotCreator          = errors.New("caller is not the market creator")
	ErrNotEligible         = errors.New("voter has no bet on this market")
	ErrAlreadyVoted        = errors.New("already voted on this dispute")
	ErrChallengeWindowOpen = errors.New("challenge window has not elapsed")
)
