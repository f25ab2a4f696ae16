package errors

import (
	"fmt"
)

var (
	// validation; the caller's fault, never retried
	ErrInvalidFormat = fmt.Errorf("invalid format")
	ErrInvalidArg    = fmt.Errorf("invalid arg")
	ErrMaxExceeded   = fmt.Errorf("max length exceeded")

	ErrNotFound     = fmt.Errorf("not found")
	ErrConflict     = fmt.Errorf("conflict")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrInvalidState = fmt.Errorf("invalid state")
	ErrNotReady     = fmt.Errorf("result not ready")
	ErrRateLimited  = fmt.Errorf("rate limited")
	ErrNotSupported = fmt.Errorf("not supported")
	ErrClosed       = fmt.Errorf("closed")
)
