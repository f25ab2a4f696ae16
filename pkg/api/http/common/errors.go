package common

import (
	"errors"
	"net/http"
	"strings"

	ie "github.com/voidshard/vidpipe/pkg/errors"
)

var (
	errmap = map[int][]error{
		http.StatusBadRequest: {
			ie.ErrInvalidFormat,
			ie.ErrInvalidArg,
			ie.ErrMaxExceeded,
			ie.ErrNotSupported,
		},
		http.StatusForbidden: {
			ie.ErrForbidden,
		},
		http.StatusNotFound: {
			ie.ErrNotFound,
		},
		http.StatusConflict: {
			ie.ErrInvalidState,
			ie.ErrConflict,
			ie.ErrNotReady,
		},
		http.StatusTooManyRequests: {
			ie.ErrRateLimited,
		},
		http.StatusServiceUnavailable: {
			ie.ErrClosed,
		},
	}
)

// StatusCode returns the http status code for a given error, or
// http.StatusInternalServerError if the error is not recognised.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for code, errs := range errmap {
		for _, e := range errs {
			if errors.Is(err, e) {
				return code
			}
		}
	}
	return http.StatusInternalServerError
}

// ToError returns the error a response stands for. Where a code maps to more
// than one error the message is used to pick; failing that the first is returned.
// Returns nil for codes we don't map.
func ToError(code int, msg string) error {
	errs, ok := errmap[code]
	if !ok || len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		if strings.HasPrefix(msg, e.Error()) {
			return e
		}
	}
	return errs[0]
}
