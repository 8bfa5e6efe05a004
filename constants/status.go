package constants

// JobStatus is the canonical status for rows in analysis_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"     // queued for processing
	JobStatusRunning   JobStatus = "RUNNING"    // in progress
	JobStatusExtractOK JobStatus = "EXTRACT_OK" // stage 1 completed (text extracted)
	JobStatusAnalyzed  JobStatus = "ANALYZED"   // stage 2 completed (fields + risk flags)
	JobStatusIndexed   JobStatus = "INDEXED"    // stage 3 completed (chunks embedded)
	JobStatusFailed    JobStatus = "FAILED"     // terminal failure
)
