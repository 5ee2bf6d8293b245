package domain

import "time"

// JobState is the lifecycle state of an asynchronous generation job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// GenerateRequest asks the pipeline for a new quiz.
type GenerateRequest struct {
	OwnerID     string
	VideoURL    string
	Title       string
	Description string
	Language    string
}

// GenerationJob tracks one queued pipeline run.
type GenerationJob struct {
	ID           string
	OwnerID      string
	VideoURL     string
	State        JobState
	QuizID       string
	ErrorCode    ErrorCode
	ErrorMessage string
	Stage        Stage
	Retryable    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
