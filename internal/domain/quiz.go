package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// QuestionsPerQuiz is the exact number of questions a stored quiz has.
	QuestionsPerQuiz = 10
	// AnswersPerQuestion is the exact number of options each question has.
	AnswersPerQuestion = 4
)

// Quiz is the persisted aggregate produced by the generation pipeline.
type Quiz struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	VideoURL    string
	VideoID     string
	Transcript  string
	Language    string
	Questions   []*Question
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Question struct {
	ID       string
	QuizID   string
	Text     string
	Position int
	Answers  []*Answer
}

type Answer struct {
	ID         string
	QuestionID string
	Text       string
	Position   int
	IsCorrect  bool
}

// Validate checks the 10 questions, 4 options, 1 correct shape.
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("quiz title is empty")
	}
	if len(q.Questions) != QuestionsPerQuiz {
		return fmt.Errorf("quiz has %d questions, want %d", len(q.Questions), QuestionsPerQuiz)
	}
	for i, question := range q.Questions {
		if question == nil {
			return fmt.Errorf("question %d is missing", i)
		}
		if question.Position != i {
			return fmt.Errorf("question %d has position %d", i, question.Position)
		}
		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("question %d has empty text", i)
		}
		if len(question.Answers) != AnswersPerQuestion {
			return fmt.Errorf("question %d has %d answers, want %d", i, len(question.Answers), AnswersPerQuestion)
		}
		correct := 0
		for j, answer := range question.Answers {
			if answer == nil || strings.TrimSpace(answer.Text) == "" {
				return fmt.Errorf("question %d answer %d is empty", i, j)
			}
			if answer.Position != j {
				return fmt.Errorf("question %d answer %d has position %d", i, j, answer.Position)
			}
			if answer.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("question %d has %d correct answers, want 1", i, correct)
		}
	}
	return nil
}

// QuestionByID returns the question with the given id, or nil.
func (q *Quiz) QuestionByID(id string) *Question {
	for _, question := range q.Questions {
		if question.ID == id {
			return question
		}
	}
	return nil
}

// AnswerByID returns the answer with the given id, or nil.
func (q *Question) AnswerByID(id string) *Answer {
	for _, answer := range q.Answers {
		if answer.ID == id {
			return answer
		}
	}
	return nil
}

// IsOwnedBy reports whether userID created the quiz.
func (q *Quiz) IsOwnedBy(userID string) bool {
	return q.OwnerID != "" && q.OwnerID == userID
}

// QuizSummary is the list view of a quiz without its questions.
type QuizSummary struct {
	ID          string
	Title       string
	Description string
	VideoURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QuizDetailsUpdate carries the editable fields of a quiz; nil means unchanged.
type QuizDetailsUpdate struct {
	Title       *string
	Description *string
}
