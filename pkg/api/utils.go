package api

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/voidshard/vidpipe/internal/utils"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	maxOwnerLength = 256
	maxRefLength   = 1024
)

// validateSubmit checks a submission & normalises the format names.
func validateSubmit(formats map[string]bool, owner string, req *structs.SubmitRequest) error {
	if req == nil {
		return fmt.Errorf("%w no request", errors.ErrInvalidArg)
	}
	if owner == "" {
		return fmt.Errorf("%w owner required", errors.ErrInvalidArg)
	}
	if len(owner) > maxOwnerLength {
		return fmt.Errorf("%w owner is %d chars, max %d", errors.ErrMaxExceeded, len(owner), maxOwnerLength)
	}
	if req.InputRef == "" {
		return fmt.Errorf("%w input_ref required", errors.ErrInvalidArg)
	}
	if len(req.InputRef) > maxRefLength {
		return fmt.Errorf("%w input_ref is %d chars, max %d", errors.ErrMaxExceeded, len(req.InputRef), maxRefLength)
	}

	req.InputFormat = strings.ToLower(strings.TrimSpace(req.InputFormat))
	req.OutputFormat = strings.ToLower(strings.TrimSpace(req.OutputFormat))
	if !formats[req.InputFormat] {
		return fmt.Errorf("%w input format %q", errors.ErrInvalidFormat, req.InputFormat)
	}
	if !formats[req.OutputFormat] {
		return fmt.Errorf("%w output format %q", errors.ErrInvalidFormat, req.OutputFormat)
	}
	return nil
}

func buildJob(owner string, req *structs.SubmitRequest) *structs.Job {
	return &structs.Job{
		JobSpec: structs.JobSpec{
			Owner:        owner,
			InputRef:     req.InputRef,
			InputFormat:  req.InputFormat,
			OutputFormat: req.OutputFormat,
		},
		ID:    utils.NewRandomID(),
		State: structs.QUEUED,
	}
}

// ownerLimits hands out a token bucket per owner.
type ownerLimits struct {
	lock    sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newOwnerLimits(perSecond float64, burst int) *ownerLimits {
	if perSecond <= 0 {
		return nil
	}
	return &ownerLimits{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: map[string]*rate.Limiter{},
	}
}

// Allow reports whether owner may submit right now. A nil *ownerLimits allows everything.
func (o *ownerLimits) Allow(owner string) bool {
	if o == nil {
		return true
	}
	o.lock.Lock()
	l, ok := o.buckets[owner]
	if !ok {
		l = rate.NewLimiter(o.limit, o.burst)
		o.buckets[owner] = l
	}
	o.lock.Unlock()
	return l.Allow()
}
