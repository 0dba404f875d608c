package tokenengine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aman-zulfiqar/spl-token-manager/internal/wallet"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrSignerRejected    = errors.New("signer rejected")
	ErrNetworkFailure    = errors.New("network failure")
	ErrInFlight          = errors.New("operation already in flight")
	ErrOperationDisabled = errors.New("operation disabled")
)

// OperationError carries the failure class of an operation (one of the
// sentinels above) alongside its cause. errors.Is matches both.
type OperationError struct {
	Op   OperationKind
	Kind error
	Hint string
	Err  error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason is the cause without the operation and class prefix.
func (e *OperationError) Reason() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func invalid(op OperationKind, format string, args ...any) *OperationError {
	return &OperationError{Op: op, Kind: ErrInvalidRequest, Err: fmt.Errorf(format, args...)}
}

func networkFailure(op OperationKind, err error) *OperationError {
	return &OperationError{Op: op, Kind: ErrNetworkFailure, Err: err}
}

// KindOf maps an error to the ErrorKind reported on outcomes.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrInvalidRequest):
		return ErrorKindInvalidRequest
	case errors.Is(err, ErrSignerRejected):
		return ErrorKindSignerRejected
	case errors.Is(err, ErrInFlight):
		return ErrorKindInFlight
	case errors.Is(err, ErrOperationDisabled):
		return ErrorKindOperationDisabled
	default:
		return ErrorKindNetworkFailure
	}
}

// Token program custom error 4 is OwnerMismatch. It surfaces when the
// connected wallet is not the mint authority or not the source owner.
// Codes such as 0x40 or Custom:41 are other errors and must not match.
var authorityMismatchRe = regexp.MustCompile(`(?i)custom program error: 0x4\b|owner does not match|custom"?\s*:\s*4\b`)

func isAuthorityMismatch(err error) bool {
	return authorityMismatchRe.MatchString(err.Error())
}

func authorityHint(op OperationKind) string {
	switch op {
	case KindMintTo:
		return "make sure the connected wallet is the mint authority"
	case KindTransfer:
		return "the connected wallet does not own the source token account"
	default:
		return ""
	}
}

// classifySubmitError maps a signer, send or confirmation error to an
// OperationError.
func classifySubmitError(op OperationKind, err error) *OperationError {
	switch {
	case errors.Is(err, wallet.ErrNotConnected):
		return &OperationError{Op: op, Kind: ErrInvalidRequest, Err: err}
	case errors.Is(err, wallet.ErrSigningFailed):
		return &OperationError{Op: op, Kind: ErrSignerRejected, Err: err}
	case isAuthorityMismatch(err):
		return &OperationError{Op: op, Kind: ErrSignerRejected, Hint: authorityHint(op), Err: err}
	default:
		return networkFailure(op, err)
	}
}
