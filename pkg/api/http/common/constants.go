package common

const (
	// API_HEALTH reports the server is up
	API_HEALTH = "/healthz"

	// API_JOBS is used to list or submit jobs
	API_JOBS = "/api/v1/jobs"

	// API_JOB is used to get the status of a job
	API_JOB = "/api/v1/jobs/{id}"

	// API_CANCEL is used to cancel a job
	API_CANCEL = "/api/v1/jobs/{id}/cancel"

	// API_RESULT is used to get a link to a job's output
	API_RESULT = "/api/v1/jobs/{id}/result"

	// API_BLOBS serves signed blob links when the file blob store is in use
	API_BLOBS = "/blobs"

	// HEADER_OWNER carries the (pre-authenticated) identity of the caller by default
	HEADER_OWNER = "X-Owner"
)
