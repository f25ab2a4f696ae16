package queue

import (
	"fmt"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// Meta includes all of the job information we need to process one execution.
type Meta struct {
	Job *structs.Job

	outputRef string
	err       error
}

// SetOutput marks the execution successful with the produced asset key.
func (m *Meta) SetOutput(ref string) {
	m.outputRef = ref
}

// SetError will cause the execution to be reported as failed.
//
// Error trumps output; the Kind of err (errors.KindOf) decides whether the job is retried.
func (m *Meta) SetError(err error) {
	m.err = err
}

// Outcome is the report sent to the Service once the handler returns.
func (m *Meta) Outcome() *structs.Outcome {
	o := &structs.Outcome{JobID: m.Job.ID, Attempt: m.Job.Attempt}
	err := m.err
	if err == nil && m.outputRef == "" {
		err = errors.Describe(errors.Transient(fmt.Errorf("handler reported no output")), "handler reported no output")
	}
	if err != nil {
		o.Failure = string(errors.KindOf(err))
		o.Message = errors.Public(err)
		return o
	}
	o.OutputRef = m.outputRef
	return o
}

// taskID is the id we queue an execution under; unique per attempt.
func taskID(j *structs.Job) string {
	return fmt.Sprintf("%s:%d", j.ID, j.Attempt)
}
