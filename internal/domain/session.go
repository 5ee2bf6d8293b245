package domain

import "time"

// ResponseStatus is the state of a quiz attempt. NotStarted has no row.
type ResponseStatus string

const (
	StatusInProgress ResponseStatus = "in_progress"
	StatusCompleted  ResponseStatus = "completed"
)

// QuizResponse is one user's attempt at a quiz.
type QuizResponse struct {
	ID              string
	QuizID          string
	UserID          string
	Status          ResponseStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	ScorePercentage *int
	Version         int64
}

func (r *QuizResponse) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// UserAnswer is the recorded choice for one question within a response.
type UserAnswer struct {
	ID         string
	ResponseID string
	QuestionID string
	AnswerID   string
	IsCorrect  bool
	AnsweredAt time.Time
}

// CompletionResult is returned once a response has been scored.
type CompletionResult struct {
	ResponseID      string
	QuizID          string
	ScorePercentage int
	CorrectCount    int
	AnsweredCount   int
	TotalQuestions  int
	CompletedAt     time.Time
}

// ResponseView is a response with the answers recorded so far.
type ResponseView struct {
	Response *QuizResponse
	Answers  []*UserAnswer
}
