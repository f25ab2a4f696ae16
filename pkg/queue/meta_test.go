package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

func TestOutcome(t *testing.T) {
	job := &structs.Job{ID: "x", Attempt: 2}

	cases := []struct {
		Name   string
		Output string
		Err    error
		Expect *structs.Outcome
	}{
		{
			Name:   "Success",
			Output: "x.wav",
			Expect: &structs.Outcome{JobID: "x", Attempt: 2, OutputRef: "x.wav"},
		},
		{
			Name:   "Permanent",
			Err:    errors.Permanent(fmt.Errorf("bad input")),
			Expect: &structs.Outcome{JobID: "x", Attempt: 2, Failure: "PERMANENT", Message: "permanent: execution failed"},
		},
		{
			Name:   "ErrorTrumpsOutput",
			Output: "x.wav",
			Err:    errors.Describe(errors.Timeout(fmt.Errorf("slow")), "transcode deadline exceeded"),
			Expect: &structs.Outcome{JobID: "x", Attempt: 2, Failure: "TIMEOUT", Message: "timeout: transcode deadline exceeded"},
		},
		{
			Name:   "DetailNotReported",
			Err:    errors.Describe(errors.Transient(fmt.Errorf("dial tcp 10.0.3.7:9000: connection refused")), "failed to read input"),
			Expect: &structs.Outcome{JobID: "x", Attempt: 2, Failure: "TRANSIENT", Message: "transient: failed to read input"},
		},
		{
			Name:   "Nothing",
			Expect: &structs.Outcome{JobID: "x", Attempt: 2, Failure: "TRANSIENT", Message: "transient: handler reported no output"},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			m := &Meta{Job: job}
			if c.Output != "" {
				m.SetOutput(c.Output)
			}
			if c.Err != nil {
				m.SetError(c.Err)
			}

			assert.Equal(t, c.Expect, m.Outcome())
		})
	}
}

func TestTaskID(t *testing.T) {
	assert.Equal(t, "abc:3", taskID(&structs.Job{ID: "abc", Attempt: 3}))
}

func TestDriver(t *testing.T) {
	assert.Equal(t, DriverLocal, (&Options{}).Driver())
	assert.Equal(t, DriverLocal, (&Options{URL: "local://"}).Driver())
	assert.Equal(t, DriverAsynq, (&Options{URL: "redis://localhost:6379"}).Driver())
	assert.Equal(t, DriverAsynq, (&Options{URL: "rediss://localhost:6379"}).Driver())
	assert.Equal(t, "", (&Options{URL: "amqp://localhost"}).Driver())
}
