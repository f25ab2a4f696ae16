package structs

// JobSpec are the fields set when a job is submitted. They never change after.
type JobSpec struct {
	// Owner is the (pre-authenticated) identity of the submitting user.
	Owner string `json:"owner"`

	// InputRef is the blob store key of the source asset.
	InputRef string `json:"input_ref"`

	// InputFormat is the format of the source asset, eg. "mp4".
	InputFormat string `json:"input_format"`

	// OutputFormat is the format we're converting to, eg. "wav".
	OutputFormat string `json:"output_format"`
}

// Job is a single request to convert an asset from one format to another.
type Job struct {
	JobSpec `json:",inline"`

	// ID is a unique identifier for this job
	ID string `json:"id"`

	// State is the current state of this job
	State Status `json:"state"`

	// Attempt is the number of times execution has started.
	// Only the scheduler alters this.
	Attempt int64 `json:"attempt"`

	// Timeouts is the number of attempts that hit the transcoder deadline.
	Timeouts int64 `json:"timeouts"`

	// OutputRef is the blob store key of the produced asset.
	// Set if and only if State is SUCCEEDED.
	OutputRef string `json:"output_ref,omitempty"`

	// Error is the last failure description.
	Error string `json:"error,omitempty"`

	// CreatedAt is the time this job was created unix time in milliseconds
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the time of the last state transition unix time in milliseconds
	UpdatedAt int64 `json:"updated_at"`
}

// Fields are the mutable parts of a Job written alongside a state change.
type Fields struct {
	Attempt   int64
	Timeouts  int64
	OutputRef string
	Error     string
}

// FieldsOf returns the current mutable fields of a job.
func FieldsOf(j *Job) *Fields {
	return &Fields{
		Attempt:   j.Attempt,
		Timeouts:  j.Timeouts,
		OutputRef: j.OutputRef,
		Error:     j.Error,
	}
}
