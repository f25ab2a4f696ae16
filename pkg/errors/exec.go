package errors

import (
	"context"
	stderr "errors"
	"io"
	"net"
	"strings"
	"syscall"
)

const defPhrase = "execution failed"

// Kind classifies why a job execution failed. The scheduler decides on retries
// purely from the Kind.
type Kind string

const (
	// KindTransient may be resolved by trying again (timeouts, connection errors, 5xx).
	KindTransient Kind = "TRANSIENT"

	// KindPermanent can't be fixed by a retry (bad input, unsupported codec).
	KindPermanent Kind = "PERMANENT"

	// KindTimeout means the transcoder deadline was hit. Retried once, then permanent.
	KindTimeout Kind = "TIMEOUT"

	// KindCanceled means the execution was aborted on request.
	KindCanceled Kind = "CANCELED"
)

// ExecError is an execution failure tagged with a Kind.
type ExecError struct {
	Kind Kind
	Err  error
}

func (e *ExecError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Transient tags err as retryable.
func Transient(err error) error {
	return &ExecError{Kind: KindTransient, Err: err}
}

// Permanent tags err as not retryable.
func Permanent(err error) error {
	return &ExecError{Kind: KindPermanent, Err: err}
}

// Timeout tags err as a deadline failure.
func Timeout(err error) error {
	return &ExecError{Kind: KindTimeout, Err: err}
}

// Canceled tags err as an aborted execution.
func Canceled(err error) error {
	return &ExecError{Kind: KindCanceled, Err: err}
}

// Described attaches a short phrase that is safe to show clients to an error.
// Error() still returns the full chain so logs keep the detail.
type Described struct {
	Phrase string
	Err    error
}

func (d *Described) Error() string {
	return d.Err.Error()
}

func (d *Described) Unwrap() error {
	return d.Err
}

// Describe attaches phrase to err. The outermost phrase wins.
func Describe(err error, phrase string) error {
	if err == nil {
		return nil
	}
	return &Described{Phrase: phrase, Err: err}
}

// Public renders err for clients as "<kind>: <phrase>". Only the Kind & the
// phrase given to Describe are used; the error text itself never is.
func Public(err error) string {
	if err == nil {
		return ""
	}
	phrase := defPhrase
	var d *Described
	if stderr.As(err, &d) && d.Phrase != "" {
		phrase = d.Phrase
	}
	return strings.ToLower(string(KindOf(err))) + ": " + phrase
}

// KindOf returns the Kind of err.
//
// Errors that were never classified are inspected: network timeouts, connection
// resets & truncated streams are transient. Anything else we know nothing about
// is also treated as transient; attempts are bounded so this can't loop forever.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ee *ExecError
	if stderr.As(err, &ee) {
		return ee.Kind
	}
	if stderr.Is(err, context.Canceled) {
		return KindCanceled
	}
	if stderr.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}

// IsTransientNetwork reports whether err looks like a network level hiccup.
func IsTransientNetwork(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if stderr.As(err, &ne) && ne.Timeout() {
		return true
	}
	return stderr.Is(err, syscall.ECONNRESET) ||
		stderr.Is(err, syscall.ECONNREFUSED) ||
		stderr.Is(err, syscall.EPIPE) ||
		stderr.Is(err, io.ErrUnexpectedEOF)
}
