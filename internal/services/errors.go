package services

import "errors"

// Errors
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidGuess          = errors.New("guess must be between 0 and 100")
	ErrInvalidPrincipal      = errors.New("invalid principal")
	ErrUnknownCategory       = errors.New("unknown reward category")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrPaused                = errors.New("contract is paused")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrRewardPoolExhausted   = errors.New("reward pool exhausted")
	ErrAlreadyClaimed        = errors.New("reward already claimed")
	ErrNoGamesPlayed         = errors.New("no games played")
	ErrOverflow              = errors.New("amount overflow")
)

// Kind names the failure class of err so callers can tell a retryable
// condition (RewardPoolExhausted) from a permanently invalid call.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	// Checked before the ledger errors it wraps.
	case errors.Is(err, ErrRewardPoolExhausted):
		return "RewardPoolExhausted"
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidGuess),
		errors.Is(err, ErrInvalidPrincipal),
		errors.Is(err, ErrUnknownCategory):
		return "InvalidInput"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrPaused):
		return "Paused"
	case errors.Is(err, ErrInsufficientAllowance):
		return "InsufficientAllowance"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrAlreadyClaimed):
		return "AlreadyClaimed"
	case errors.Is(err, ErrNoGamesPlayed):
		return "NoGamesPlayed"
	case errors.Is(err, ErrOverflow):
		return "Overflow"
	default:
		return "Internal"
	}
}
