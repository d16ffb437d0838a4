package types

import "errors"

// ErrorKind classifies ledger errors by who is at fault.
type ErrorKind uint8

const (
	// KindInput means the caller supplied bad data.
	KindInput ErrorKind = iota + 1
	// KindPrecondition means the request is well formed but the vault or hub
	// is not in a state that allows it.
	KindPrecondition
	// KindInvariant means stored state or oracle data contradict each other.
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindPrecondition:
		return "precondition"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is a sentinel ledger error. Call sites wrap it with fmt.Errorf("%w")
// to add detail; errors.Is still matches the sentinel.
type Error struct {
	Kind ErrorKind
	msg  string
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInputError reports whether err was caused by invalid caller input.
func IsInputError(err error) bool { return kindOf(err) == KindInput }

// IsPreconditionError reports whether err is a failed state precondition.
func IsPreconditionError(err error) bool { return kindOf(err) == KindPrecondition }

// IsInvariantError reports whether err signals inconsistent state.
func IsInvariantError(err error) bool { return kindOf(err) == KindInvariant }

// input errors
var (
	ErrInvalidConnectionParams      = newError(KindInput, "invalid connection parameters")
	ErrInvalidSanityParams          = newError(KindInput, "invalid sanity parameters")
	ErrInvalidReportData            = newError(KindInput, "invalid report data")
	ErrInvalidLeaf                  = newError(KindInput, "invalid vault leaf")
	ErrInvalidProof                 = newError(KindInput, "invalid merkle proof")
	ErrInvalidWithdrawalCredentials = newError(KindInput, "invalid withdrawal credentials")
	ErrZeroAmount                   = newError(KindInput, "zero amount")
	ErrZeroAddress                  = newError(KindInput, "zero address")
	ErrTotalValueTooLarge           = newError(KindInput, "total value too large")
	ErrCumulativeFeesTooLow         = newError(KindInput, "cumulative lido fees decreased")
	ErrCumulativeFeesTooLarge       = newError(KindInput, "cumulative lido fees grew too fast")
	ErrInvalidMaxLiabilityShares    = newError(KindInput, "invalid max liability shares")
)

// precondition errors
var (
	ErrNotAuthorized             = newError(KindPrecondition, "not authorized")
	ErrHubPaused                 = newError(KindPrecondition, "hub is paused")
	ErrVaultNotConnected         = newError(KindPrecondition, "vault not connected")
	ErrVaultAlreadyConnected     = newError(KindPrecondition, "vault already connected")
	ErrStaleRoot                 = newError(KindPrecondition, "report ref slot older than the published one")
	ErrFrameNotFinal             = newError(KindPrecondition, "frame is not final")
	ErrNoReportPublished         = newError(KindPrecondition, "no report published")
	ErrReportAlreadyApplied      = newError(KindPrecondition, "report already applied to vault")
	ErrReportStale               = newError(KindPrecondition, "vault report is stale")
	ErrInsufficientValue         = newError(KindPrecondition, "insufficient unlocked value")
	ErrShareLimitExceeded        = newError(KindPrecondition, "share limit exceeded")
	ErrInsufficientShares        = newError(KindPrecondition, "insufficient liability shares")
	ErrNoFeesToSettle            = newError(KindPrecondition, "no lido fees to settle")
	ErrNoFundsToSettle           = newError(KindPrecondition, "no unlocked value to settle fees")
	ErrNoReasonForForceRebalance = newError(KindPrecondition, "vault is healthy")
	ErrBadDebt                   = newError(KindPrecondition, "vault has bad debt")
	ErrPendingDisconnect         = newError(KindPrecondition, "vault disconnect pending")
	ErrLiabilitySharesRemain     = newError(KindPrecondition, "liability shares remain")
	ErrUnsettledFees             = newError(KindPrecondition, "unsettled lido fees remain")
)

// invariant errors
var (
	ErrInOutDeltaCacheOverwritten = newError(KindInvariant, "in/out delta cache overwritten")
	ErrTotalValueUnderflow        = newError(KindInvariant, "total value underflow")
)
