package auction

import "errors"

// Domain errors. Every operation fails with exactly one of these (wrapped
// with context); callers classify with errors.Is and map to transport
// codes with Code.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("auction not found")
	ErrNotActive           = errors.New("auction not active")
	ErrNotEnded            = errors.New("auction not ended")
	ErrAlreadyEnded        = errors.New("auction already ended")
	ErrForbidden           = errors.New("caller not permitted")
	ErrTooEarly            = errors.New("bid timeout not elapsed")
	ErrInvalidEncryption   = errors.New("invalid encrypted bid")
	ErrNotWinner           = errors.New("caller is not the winner")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrAlreadySettled      = errors.New("auction already settled")
	ErrTransferFailed      = errors.New("transfer failed")
)

// Code returns the stable identifier for a domain error, or "internal"
// for anything outside the taxonomy. These strings are part of the
// external contract and must not change.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrNotEnded):
		return "not_ended"
	case errors.Is(err, ErrAlreadyEnded):
		return "already_ended"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTooEarly):
		return "too_early"
	case errors.Is(err, ErrInvalidEncryption):
		return "invalid_encryption"
	case errors.Is(err, ErrNotWinner):
		return "not_winner"
	case errors.Is(err, ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	default:
		return "internal"
	}
}
