package database

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voidshard/vidpipe/internal/utils"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// timeNow returns the current time in unix milliseconds
var timeNow = func() int64 {
	return time.Now().UnixMilli()
}

// cursor is the position after which the next page starts.
type cursor struct {
	CreatedAt int64
	ID        string
}

// encodeCursor builds an opaque page token for the given job.
func encodeCursor(j *structs.Job) string {
	raw := fmt.Sprintf("%d/%s", j.CreatedAt, j.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses a page token. An empty token is the start of the listing.
func decodeCursor(token string) (*cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w page token", errors.ErrInvalidArg)
	}
	parts := strings.SplitN(string(raw), "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w page token", errors.ErrInvalidArg)
	}
	at, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w page token", errors.ErrInvalidArg)
	}
	return &cursor{CreatedAt: at, ID: parts[1]}, nil
}

// after returns true if the job sorts after the cursor.
func (c *cursor) after(j *structs.Job) bool {
	if c == nil {
		return true
	}
	if j.CreatedAt != c.CreatedAt {
		return j.CreatedAt > c.CreatedAt
	}
	return j.ID > c.ID
}

// prepareInsert validates a new job & fills in id / timestamps.
func prepareInsert(j *structs.Job) error {
	if j == nil {
		return fmt.Errorf("%w nil job", errors.ErrInvalidArg)
	}
	if j.ID == "" {
		j.ID = utils.NewRandomID()
	}
	if j.State == "" {
		j.State = structs.QUEUED
	}
	if j.CreatedAt == 0 {
		j.CreatedAt = timeNow()
	}
	if j.UpdatedAt == 0 {
		j.UpdatedAt = j.CreatedAt
	}
	return validateOutputRef(j.State, j.OutputRef)
}

// validateUpdate checks a proposed state change is legal before we touch storage.
func validateUpdate(expect, next structs.Status, f *structs.Fields) error {
	if f == nil {
		return fmt.Errorf("%w nil fields", errors.ErrInvalidArg)
	}
	if !structs.CanTransition(expect, next) {
		return fmt.Errorf("%w %s -> %s", errors.ErrInvalidState, expect, next)
	}
	if f.Attempt < 0 || f.Timeouts < 0 {
		return fmt.Errorf("%w negative counter", errors.ErrInvalidArg)
	}
	return validateOutputRef(next, f.OutputRef)
}

// validateOutputRef enforces OutputRef is set if and only if the state is SUCCEEDED.
func validateOutputRef(st structs.Status, ref string) error {
	if st == structs.SUCCEEDED && ref == "" {
		return fmt.Errorf("%w %s requires an output ref", errors.ErrInvalidArg, st)
	}
	if st != structs.SUCCEEDED && ref != "" {
		return fmt.Errorf("%w output ref set on %s", errors.ErrInvalidArg, st)
	}
	return nil
}

// statusToStrings converts a list of statuses into a list of strings
func statusToStrings(in []structs.Status) []string {
	if len(in) == 0 {
		return nil
	}
	out := []string{}
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}
