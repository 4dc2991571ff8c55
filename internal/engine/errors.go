package engine

import "errors"

// RejectionError marks an expected business-rule rejection. Rejections are
// outcomes surfaced to the caller with a reason, never faults.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Rejection reasons.
var (
	ErrInvalidTaskType       = &RejectionError{Reason: "invalid task type"}
	ErrPremiumLimitReached   = &RejectionError{Reason: "limit reached"}
	ErrAlreadyCompletedToday = &RejectionError{Reason: "already completed today"}
	ErrAlreadyCompleted      = &RejectionError{Reason: "already completed"}
	ErrInvalidCode           = &RejectionError{Reason: "invalid code"}
	ErrCodeAlreadyUsed       = &RejectionError{Reason: "already used"}
	ErrMinimumNotMet         = &RejectionError{Reason: "minimum not met"}
	ErrWalletNotSet          = &RejectionError{Reason: "wallet not set"}
)

// IsRejection reports whether err is a business-rule rejection.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}
