package models

import (
	"database/sql"
	"time"
)

type QuizResponse struct {
	ID              string        `db:"id"`
	QuizID          string        `db:"quiz_id"`
	UserID          string        `db:"user_id"`
	Status          string        `db:"status"`
	StartedAt       time.Time     `db:"started_at"`
	CompletedAt     sql.NullTime  `db:"completed_at"`
	ScorePercentage sql.NullInt64 `db:"score_percentage"`
	Version         int64         `db:"version"`
}

type UserAnswer struct {
	ID         string    `db:"id"`
	ResponseID string    `db:"response_id"`
	QuestionID string    `db:"question_id"`
	AnswerID   string    `db:"answer_id"`
	IsCorrect  int       `db:"is_correct"`
	AnsweredAt time.Time `db:"answered_at"`
}
