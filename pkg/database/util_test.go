package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/vidpipe/internal/utils"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

func TestCursorRoundTrip(t *testing.T) {
	j := &structs.Job{ID: utils.NewID(1), CreatedAt: 12345}

	c, err := decodeCursor(encodeCursor(j))

	assert.Nil(t, err)
	assert.Equal(t, &cursor{CreatedAt: 12345, ID: j.ID}, c)
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, token := range []string{"***", "bm9zbGFzaA", "YWJjL2RlZg"} { // junk, "noslash", "abc/def"
		_, err := decodeCursor(token)
		assert.ErrorIs(t, err, errors.ErrInvalidArg, token)
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := decodeCursor("")

	assert.Nil(t, err)
	assert.Nil(t, c)
	assert.True(t, c.after(&structs.Job{}))
}

func TestCursorAfter(t *testing.T) {
	c := &cursor{CreatedAt: 10, ID: "b"}

	assert.True(t, c.after(&structs.Job{CreatedAt: 11, ID: "a"}))
	assert.True(t, c.after(&structs.Job{CreatedAt: 10, ID: "c"}))
	assert.False(t, c.after(&structs.Job{CreatedAt: 10, ID: "b"}))
	assert.False(t, c.after(&structs.Job{CreatedAt: 9, ID: "z"}))
}

func TestValidateUpdate(t *testing.T) {
	cases := []struct {
		Name   string
		Expect structs.Status
		Next   structs.Status
		Fields *structs.Fields
		Err    error
	}{
		{"NilFields", structs.QUEUED, structs.RUNNING, nil, errors.ErrInvalidArg},
		{"Admit", structs.QUEUED, structs.RUNNING, &structs.Fields{Attempt: 1}, nil},
		{"Succeed", structs.RUNNING, structs.SUCCEEDED, &structs.Fields{Attempt: 1, OutputRef: "a.wav"}, nil},
		{"SucceedWithoutRef", structs.RUNNING, structs.SUCCEEDED, &structs.Fields{Attempt: 1}, errors.ErrInvalidArg},
		{"FailWithRef", structs.RUNNING, structs.FAILED, &structs.Fields{OutputRef: "a.wav"}, errors.ErrInvalidArg},
		{"OutOfFinal", structs.FAILED, structs.QUEUED, &structs.Fields{}, errors.ErrInvalidState},
		{"SkipRunning", structs.QUEUED, structs.SUCCEEDED, &structs.Fields{OutputRef: "a.wav"}, errors.ErrInvalidState},
		{"Negative", structs.QUEUED, structs.RUNNING, &structs.Fields{Attempt: -1}, errors.ErrInvalidArg},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			err := validateUpdate(c.Expect, c.Next, c.Fields)
			if c.Err == nil {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, c.Err)
			}
		})
	}
}

func TestPrepareInsert(t *testing.T) {
	j := &structs.Job{}

	err := prepareInsert(j)

	assert.Nil(t, err)
	assert.True(t, utils.IsValidID(j.ID))
	assert.Equal(t, structs.QUEUED, j.State)
	assert.NotZero(t, j.CreatedAt)
	assert.Equal(t, j.CreatedAt, j.UpdatedAt)
}

func TestStatusToStrings(t *testing.T) {
	cases := []struct {
		Name   string
		In     []structs.Status
		Expect []string
	}{
		{
			Name:   "Empty",
			In:     []structs.Status{},
			Expect: nil,
		},
		{
			Name:   "Nil",
			In:     nil,
			Expect: nil,
		},
		{
			Name:   "All",
			In:     structs.AllStatuses,
			Expect: []string{"QUEUED", "RUNNING", "SUCCEEDED", "FAILED", "CANCELED"},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, statusToStrings(c.In))
		})
	}
}
