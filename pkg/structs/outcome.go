package structs

// Outcome is what a worker reports back to the scheduler after executing a job.
// Workers never write to the job store; this is their only output.
type Outcome struct {
	JobID string `json:"job_id"`

	// Attempt is the attempt this outcome belongs to. Outcomes for any other
	// attempt than the one in flight are ignored.
	Attempt int64 `json:"attempt"`

	// OutputRef is set on success.
	OutputRef string `json:"output_ref,omitempty"`

	// Failure is the errors.Kind of the failure; empty on success.
	Failure string `json:"failure,omitempty"`

	// Message describes the failure.
	Message string `json:"message,omitempty"`
}

// Succeeded returns true if the outcome reports success.
func (o *Outcome) Succeeded() bool {
	return o.Failure == "" && o.OutputRef != ""
}
