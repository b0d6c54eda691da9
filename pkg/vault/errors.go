package vault

import "errors"

// Common vault accounting errors
var (
	ErrVaultNotFound       = errors.New("vault not found")
	ErrHoldingNotFound     = errors.New("holding not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrMissingReference    = errors.New("underlying holding reference required")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrConflict            = errors.New("stale contract reference")
	ErrUnavailable         = errors.New("ledger unavailable")
	ErrLedgerResponse      = errors.New("unexpected ledger response")
)

// Code classifies an error for the request handler layer. The core never
// retries; callers decide based on the code.
type Code int

const (
	CodeOK Code = iota
	CodeNotFound
	CodeInvalidArgument
	CodeInsufficientBalance
	CodeInsufficientShares
	CodeConflict
	CodeTransient
	CodeFatal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotFound:
		return "not_found"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeInsufficientBalance:
		return "insufficient_balance"
	case CodeInsufficientShares:
		return "insufficient_shares"
	case CodeConflict:
		return "conflict"
	case CodeTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// CodeOf maps an error to its taxonomy code. Unrecognized errors are
// fatal: surfaced, never retried.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrVaultNotFound), errors.Is(err, ErrHoldingNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingReference):
		return CodeInvalidArgument
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrInsufficientShares):
		return CodeInsufficientShares
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrUnavailable):
		return CodeTransient
	default:
		return CodeFatal
	}
}
