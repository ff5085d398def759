package core

import "fmt"

// Code is the stable numeric identifier of an engine error. Codes start
// at 6000 and never change once assigned; clients match on the number.
type Code uint32

const (
	// Configuration
	ErrInvalidFeeConfiguration Code = 6000 + iota
	ErrInvalidThreshold
	ErrProtocolPaused
	ErrInvalidGlobalConfig

	// Lifecycle
	ErrInvalidStateTransition
	ErrMarketNotActive
	ErrMarketNotFinalized
	ErrCannotCancelActiveMarket
	ErrInvalidBParameter
	ErrInsufficientLiquidity

	// Voting
	ErrInsufficientApprovalVotes
	ErrInvalidStateForVoting
	ErrMissingDisputeVotes
	ErrAlreadyVoted

	// Trading
	ErrSlippageExceeded
	ErrInsufficientShares
	ErrTradeTooSmall
	ErrNoWinnings
	ErrAlreadyClaimed
	ErrNoLiquidityToWithdraw

	// Resolution
	ErrResolutionTooEarly
	ErrDisputePeriodExpired
	ErrDisputePeriodNotExpired
	ErrInvalidResolver
	ErrBoundedLossExceeded
	ErrInvalidTimestamp

	// Math
	ErrOverflow
	ErrUnderflow
	ErrDivisionByZero
	ErrExponentTooLarge
	ErrFeeSplitInvariantViolated

	// Access
	ErrUnauthorized
	ErrInvalidFeeWallet
	ErrInvalidMarketID
	ErrReentrant

	// Resource
	ErrWouldBreakRentExemption
	ErrInsufficientFunds
)

var codeNames = map[Code]string{
	ErrInvalidFeeConfiguration:   "InvalidFeeConfiguration",
	ErrInvalidThreshold:          "InvalidThreshold",
	ErrProtocolPaused:            "ProtocolPaused",
	ErrInvalidGlobalConfig:       "InvalidGlobalConfig",
	ErrInvalidStateTransition:    "InvalidStateTransition",
	ErrMarketNotActive:           "MarketNotActive",
	ErrMarketNotFinalized:        "MarketNotFinalized",
	ErrCannotCancelActiveMarket:  "CannotCancelActiveMarket",
	ErrInvalidBParameter:         "InvalidBParameter",
	ErrInsufficientLiquidity:     "InsufficientLiquidity",
	ErrInsufficientApprovalVotes: "InsufficientApprovalVotes",
	ErrInvalidStateForVoting:     "InvalidStateForVoting",
	ErrMissingDisputeVotes:       "MissingDisputeVotes",
	ErrAlreadyVoted:              "AlreadyVoted",
	ErrSlippageExceeded:          "SlippageExceeded",
	ErrInsufficientShares:        "InsufficientShares",
	ErrTradeTooSmall:             "TradeTooSmall",
	ErrNoWinnings:                "NoWinnings",
	ErrAlreadyClaimed:            "AlreadyClaimed",
	ErrNoLiquidityToWithdraw:     "NoLiquidityToWithdraw",
	ErrResolutionTooEarly:        "ResolutionTooEarly",
	ErrDisputePeriodExpired:      "DisputePeriodExpired",
	ErrDisputePeriodNotExpired:   "DisputePeriodNotExpired",
	ErrInvalidResolver:           "InvalidResolver",
	ErrBoundedLossExceeded:       "BoundedLossExceeded",
	ErrInvalidTimestamp:          "InvalidTimestamp",
	ErrOverflow:                  "OverflowError",
	ErrUnderflow:                 "UnderflowError",
	ErrDivisionByZero:            "DivisionByZero",
	ErrExponentTooLarge:          "ExponentTooLarge",
	ErrFeeSplitInvariantViolated: "FeeSplitInvariantViolated",
	ErrUnauthorized:              "Unauthorized",
	ErrInvalidFeeWallet:          "InvalidFeeWallet",
	ErrInvalidMarketID:           "InvalidMarketId",
	ErrReentrant:                 "Reentrant",
	ErrWouldBreakRentExemption:   "WouldBreakRentExemption",
	ErrInsufficientFunds:         "InsufficientFunds",
}

// Error is an engine failure carrying its stable code. Handlers return
// these directly; context goes in Detail.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	name := codeNames[e.Code]
	if name == "" {
		name = "UnknownError"
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s (%d)", name, e.Code)
	}
	return fmt.Sprintf("%s (%d): %s", name, e.Code, e.Detail)
}

// Is makes errors.Is match on the code alone, so call sites can compare
// against bare table entries regardless of detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError builds an engine error for a code with optional detail.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodedError returns the bare error value for a code, suitable both for
// returning and for errors.Is comparison.
func CodedError(code Code) *Error {
	return &Error{Code: code}
}

// Name returns the stable string name of a code.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UnknownError"
}
