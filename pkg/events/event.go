package events

import (
	"encoding/json"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// Event is the published form of a job transition.
type Event struct {
	JobID     string         `json:"job_id"`
	Owner     string         `json:"owner"`
	State     structs.Status `json:"state"`
	Attempt   int64          `json:"attempt"`
	OutputRef string         `json:"output_ref,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt int64          `json:"updated_at"`
}

func toEvent(j *structs.Job) *Event {
	return &Event{
		JobID:     j.ID,
		Owner:     j.Owner,
		State:     j.State,
		Attempt:   j.Attempt,
		OutputRef: j.OutputRef,
		Error:     j.Error,
		UpdatedAt: j.UpdatedAt,
	}
}

func encode(j *structs.Job) ([]byte, error) {
	return json.Marshal(toEvent(j))
}
