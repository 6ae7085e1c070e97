package model

type JobStatus string

const (
	JobStatusRunning    JobStatus = "RUNNING"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusNotStarted JobStatus = "NOT_STARTED"
	JobStatusSuccessful JobStatus = "SUCCESSFUL"
)

// DeriveStatus computes the status of a job from its record and the
// presence of a live worker. Status is never stored; it is observed.
func DeriveStatus(r JobRecord, workerPresent bool) JobStatus {
	switch {
	case workerPresent:
		return JobStatusRunning
	case len(r.FatalErrors) > 0:
		return JobStatusFailed
	case r.LastStats == nil:
		return JobStatusNotStarted
	default:
		return JobStatusSuccessful
	}
}
