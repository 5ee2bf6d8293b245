package models

import (
	"database/sql"
	"time"
)

// Quiz is the row shape of the quizzes table.
type Quiz struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	VideoURL    string         `db:"video_url"`
	VideoID     string         `db:"video_id"`
	Transcript  sql.NullString `db:"transcript"`
	Language    sql.NullString `db:"language"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type Question struct {
	ID       string `db:"id"`
	QuizID   string `db:"quiz_id"`
	Text     string `db:"question_text"`
	Position int    `db:"position"`
}

// Answer stores is_correct as NUMBER(1) / INTEGER.
type Answer struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"answer_text"`
	Position   int    `db:"position"`
	IsCorrect  int    `db:"is_correct"`
}

// QuizSummary is the projection used by owner listings.
type QuizSummary struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	VideoURL    string         `db:"video_url"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
