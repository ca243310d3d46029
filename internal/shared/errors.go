package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Local persistence errors. Callers degrade to a cache miss or a
	// dropped append; they never surface these to the end user.
	ErrStorageUnavailable = fmt.Errorf("local storage unavailable")
	ErrCacheDecode        = fmt.Errorf("cached payload undecodable")

	// Remote backend errors
	ErrPermissionDenied   = fmt.Errorf("permission denied")
	ErrTransient          = fmt.Errorf("transient remote failure")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Sync queue errors
	ErrUnknownOperation = fmt.Errorf("unknown operation kind")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorClass buckets a remote failure for the optimistic mutation flow.
type ErrorClass int

const (
	// ClassNone means no error occurred.
	ClassNone ErrorClass = iota

	// ClassPermission means the remote rejected the write authoritatively.
	// The optimistic local change is provably wrong and must be reverted.
	ClassPermission

	// ClassTransient means delivery failed but the user's intent is still
	// believed correct. The operation is queued for later replay.
	ClassTransient
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassPermission:
		return "permission"
	case ClassTransient:
		return "transient"
	default:
		return ""
	}
}

// ClassifyError maps a remote-call failure to an [ErrorClass].
//
// Every coordinator uses this one function; there is no per-call-site
// classification. Anything not recognizably a permission failure is
// treated as transient, so an unknown error is retried rather than
// silently rolled back.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrTokenExpired) {
		return ClassPermission
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return ClassTransient
	}
	return ClassTransient
}
