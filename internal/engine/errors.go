package engine

import "errors"

// Operation failures callers are expected to branch on. The HTTP layer maps
// these to stable error codes.
var (
	ErrNotInitialized     = errors.New("program state not initialized")
	ErrAlreadyInitialized = errors.New("program state already initialized")
	ErrUnauthorized       = errors.New("operation requires the platform authority")

	ErrInvalidAmount          = errors.New("invalid amount")
	ErrAmountOverflow         = errors.New("amount overflows 64-bit arithmetic")
	ErrInsufficientFunds      = errors.New("insufficient reputation token balance")
	ErrMaxSupplyExceeded      = errors.New("reputation supply cap exceeded")
	ErrBelowMinimumInvestment = errors.New("amount below minimum investment")
	ErrBelowMinimumStake      = errors.New("stake below minimum")

	ErrSkillNotFound          = errors.New("skill not found")
	ErrCannotInvestInOwnSkill = errors.New("cannot invest in own skill")
	ErrCannotEndorseOwnSkill  = errors.New("cannot endorse own skill")
	ErrAlreadyEndorsed        = errors.New("active endorsement already exists")

	ErrNoInvestmentFound = errors.New("no investment found")
	ErrNoYieldToClaim    = errors.New("no yield to claim")
	ErrNoRewardsToClaim  = errors.New("no rewards to claim")

	ErrNothingToChallenge                = errors.New("no endorsements to challenge")
	ErrAlreadyChallenged                 = errors.New("skill already challenged")
	ErrSkillNotChallenged                = errors.New("skill not challenged")
	ErrChallengePeriodNotEnded           = errors.New("challenge period not ended")
	ErrInsufficientReputationToChallenge = errors.New("insufficient reputation to challenge")
)
