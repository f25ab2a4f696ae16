package structs

// SubmitRequest asks for a new transcode job. The owner is not part of the
// body; it's supplied by whatever authenticated the caller.
type SubmitRequest struct {
	InputRef     string `json:"input_ref"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
}

// StatusResponse is the client view of a job.
type StatusResponse struct {
	ID        string `json:"id"`
	State     Status `json:"state"`
	Attempt   int64  `json:"attempt"`
	OutputRef string `json:"output_ref,omitempty"`
	Error     string `json:"error,omitempty"`
}

// JobSummary is a list entry.
type JobSummary struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
	State        Status `json:"state"`
	Attempt      int64  `json:"attempt"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// ListResponse is a page of job summaries.
type ListResponse struct {
	Jobs []*JobSummary `json:"jobs"`

	// NextPageToken is set when more results may follow.
	NextPageToken string `json:"next_page_token,omitempty"`
}

// ResultResponse holds a time limited link to the produced asset.
type ResultResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// ToStatusResponse builds the client view of a job.
func ToStatusResponse(j *Job) *StatusResponse {
	return &StatusResponse{
		ID:        j.ID,
		State:     j.State,
		Attempt:   j.Attempt,
		OutputRef: j.OutputRef,
		Error:     j.Error,
	}
}

// ToSummary builds a list entry for a job.
func ToSummary(j *Job) *JobSummary {
	return &JobSummary{
		ID:           j.ID,
		Owner:        j.Owner,
		InputFormat:  j.InputFormat,
		OutputFormat: j.OutputFormat,
		State:        j.State,
		Attempt:      j.Attempt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}
