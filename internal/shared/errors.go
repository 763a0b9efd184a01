package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidAmount indicates a payment amount outside the accepted range.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates a debit exceeding the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidSignature indicates a webhook that failed authenticity checks.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrPayoutFailed indicates the external payout rail rejected or errored.
	ErrPayoutFailed = errors.New("payout failed")
)
