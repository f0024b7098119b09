package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Error kinds
// ──────────────────────────────────────────────────────────────────────────────

// ErrorKind groups domain errors by the class of precondition they violate.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration" // bad creation parameters or amounts
	KindAuthorization ErrorKind = "authorization" // wrong caller for the operation
	KindState         ErrorKind = "state"         // wrong lifecycle state or flag
	KindArithmetic    ErrorKind = "arithmetic"    // overflow or narrowing failure
	KindConsistency   ErrorKind = "consistency"   // records disagree with each other
	KindNotFound      ErrorKind = "not_found"     // record does not exist
	KindConflict      ErrorKind = "conflict"      // record busy in another transaction
)

// Error is a domain sentinel carrying its kind and a stable machine code.
// Compare with errors.Is against the exported variables below.
type Error struct {
	Kind ErrorKind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors, compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Configuration errors
var (
	// ErrInvalidDeadline is returned when a match deadline is not strictly in
	// the future at creation.
	ErrInvalidDeadline = newError(KindConfiguration, "INVALID_DEADLINE", "deadline must be in the future")

	// ErrInvalidStake is returned when a match is created with a zero stake.
	ErrInvalidStake = newError(KindConfiguration, "INVALID_STAKE", "stake must be greater than zero")

	// ErrInvalidAmount is returned for a zero or malformed bet amount.
	ErrInvalidAmount = newError(KindConfiguration, "INVALID_AMOUNT", "amount must be greater than zero")

	// ErrInvalidSide is returned when a side is neither PlayerA nor PlayerB.
	ErrInvalidSide = newError(KindConfiguration, "INVALID_SIDE", "side must be PlayerA or PlayerB")

	// ErrInvalidAddress is returned when an identity is not a 20-byte hex address.
	ErrInvalidAddress = newError(KindConfiguration, "INVALID_ADDRESS", "invalid address")

	// ErrSideMismatch is declared for parity with the record layout but never
	// raised: a bet's side is fixed when it is placed.
	ErrSideMismatch = newError(KindConfiguration, "SIDE_MISMATCH", "bet side does not match")
)

// Authorization errors
var (
	// ErrNotAPlayer is returned when a join caller is neither principal.
	ErrNotAPlayer = newError(KindAuthorization, "NOT_A_PLAYER", "caller is not a player of this match")

	// ErrNotArbiter is returned when someone other than the arbiter declares.
	ErrNotArbiter = newError(KindAuthorization, "NOT_ARBITER", "only the arbiter can declare the winner")

	// ErrNotWinnerPlayer is returned when the losing principal or an outsider
	// tries to withdraw the stakes.
	ErrNotWinnerPlayer = newError(KindAuthorization, "NOT_WINNER_PLAYER", "caller is not the winning player")

	// ErrNotBettor is returned when a claim is made on someone else's bet.
	ErrNotBettor = newError(KindAuthorization, "NOT_BETTOR", "caller is not the bettor")

	// ErrUnauthorized is returned when no valid token is present.
	ErrUnauthorized = newError(KindAuthorization, "UNAUTHORIZED", "unauthorized")

	// ErrForbidden is returned when the authenticated caller lacks the role.
	ErrForbidden = newError(KindAuthorization, "FORBIDDEN", "forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT has passed its TTL.
	ErrTokenExpired = newError(KindAuthorization, "TOKEN_EXPIRED", "token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or verified.
	ErrTokenInvalid = newError(KindAuthorization, "TOKEN_INVALID", "token is invalid")

	// ErrInvalidSignature is returned when a login signature does not recover
	// to the claimed address.
	ErrInvalidSignature = newError(KindAuthorization, "INVALID_SIGNATURE", "signature does not match address")

	// ErrChallengeExpired is returned when a login nonce is unknown or stale.
	ErrChallengeExpired = newError(KindAuthorization, "CHALLENGE_EXPIRED", "login challenge expired or unknown")
)

// State errors
var (
	// ErrInvalidStatus is returned when the match status does not allow the
	// requested operation.
	ErrInvalidStatus = newError(KindState, "INVALID_STATUS", "invalid match status for this operation")

	// ErrAlreadyDeposited is returned when a principal joins twice.
	ErrAlreadyDeposited = newError(KindState, "ALREADY_DEPOSITED", "player already deposited")

	// ErrBetsClosed is returned for a bet at or after the deadline.
	ErrBetsClosed = newError(KindState, "BETS_CLOSED", "betting is closed for this match")

	// ErrTooEarly is returned when the winner is declared before the deadline.
	ErrTooEarly = newError(KindState, "TOO_EARLY", "cannot declare winner before deadline")

	// ErrAlreadyResolved is returned when a winner is already set.
	ErrAlreadyResolved = newError(KindState, "ALREADY_RESOLVED", "match already resolved")

	// ErrNoWinner is returned when a payout is requested with no winner set.
	ErrNoWinner = newError(KindState, "NO_WINNER", "no winner declared")

	// ErrStakesAlreadyWithdrawn is returned on a second stake withdrawal.
	ErrStakesAlreadyWithdrawn = newError(KindState, "STAKES_ALREADY_WITHDRAWN", "stakes already withdrawn")

	// ErrAlreadyClaimed is returned on a second payout claim for a bet.
	ErrAlreadyClaimed = newError(KindState, "ALREADY_CLAIMED", "payout already claimed")

	// ErrMatchExists is returned when the arbiter already owns a match.
	ErrMatchExists = newError(KindState, "MATCH_EXISTS", "match already exists for this arbiter")

	// ErrBetExists is returned when the bettor already has a bet on the match.
	ErrBetExists = newError(KindState, "BET_EXISTS", "bettor already placed a bet on this match")

	// ErrInsufficientFunds is returned when a debit would make a balance negative.
	ErrInsufficientFunds = newError(KindState, "INSUFFICIENT_FUNDS", "insufficient funds")

	// ErrAccountKindMismatch is returned when an address already holds an
	// account of another kind, e.g. a credited wallet sitting where a vault
	// would be opened.
	ErrAccountKindMismatch = newError(KindState, "ACCOUNT_KIND_MISMATCH", "address already holds an account of another kind")
)

// Arithmetic errors
var (
	// ErrMathOverflow is returned when an addition, multiplication or narrowing
	// does not fit in 64 bits.
	ErrMathOverflow = newError(KindArithmetic, "MATH_OVERFLOW", "math overflow")
)

// Consistency errors
var (
	// ErrWrongSide is returned when a losing-side bet is claimed.
	ErrWrongSide = newError(KindConsistency, "WRONG_SIDE", "bet is not on the winning side")

	// ErrNoBetsOnWinnerSide is returned when the winning pool is empty.
	ErrNoBetsOnWinnerSide = newError(KindConsistency, "NO_BETS_ON_WINNER_SIDE", "no bets on the winning side")

	// ErrBetMatchMismatch is returned when a bet belongs to another match.
	ErrBetMatchMismatch = newError(KindConsistency, "BET_MATCH_MISMATCH", "bet does not belong to this match")
)

// Lookup and concurrency errors
var (
	// ErrMatchNotFound is returned when no match lives at the given address.
	ErrMatchNotFound = newError(KindNotFound, "MATCH_NOT_FOUND", "match not found")

	// ErrBetNotFound is returned when no bet lives at the given address.
	ErrBetNotFound = newError(KindNotFound, "BET_NOT_FOUND", "bet not found")

	// ErrAccountNotFound is returned when an account has never been credited.
	ErrAccountNotFound = newError(KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")

	// ErrConflict is returned when another transaction holds the record. The
	// operation is rejected rather than queued.
	ErrConflict = newError(KindConflict, "CONFLICT", "record is locked by a concurrent operation")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// KindOf returns the kind of the first domain error in err's chain, or "" if
// err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the machine code of the first domain error in err's chain.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound returns true when err (or any error in its chain) is a domain
// "not found" error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict returns true when err means the record was busy.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	return KindOf(err) == KindAuthorization
}
