package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"quiztube/internal/domain"
	"quiztube/internal/repository/models"
	"quiztube/internal/util"

	"github.com/jmoiron/sqlx"
)

// Column lists carry quoted lower-case aliases because Oracle reports upper-case names.
const (
	quizColumns = `id "id", owner_id "owner_id", title "title", description "description",
		video_url "video_url", video_id "video_id", transcript "transcript", language "language",
		created_at "created_at", updated_at "updated_at"`
	questionColumns = `q.id "id", q.quiz_id "quiz_id", q.question_text "question_text", q.position "position"`
	answerColumns   = `a.id "id", a.question_id "question_id", a.answer_text "answer_text",
		a.position "position", a.is_correct "is_correct"`
)

// QuizDatabaseAdapter implements domain.QuizRepository using sqlx.DB
type QuizDatabaseAdapter struct {
	db *sqlx.DB
	tm domain.TransactionManager
}

func NewQuizDatabaseAdapter(db *sqlx.DB) domain.QuizRepository {
	return &QuizDatabaseAdapter{db: db, tm: NewTransactionManagerAdapter(db)}
}

// CreateQuiz inserts the quiz with its questions and answers in one transaction.
// Missing ids are assigned here.
func (a *QuizDatabaseAdapter) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz == nil {
		return domain.NewInvalidInputError("cannot save nil quiz")
	}
	if err := quiz.Validate(); err != nil {
		return domain.NewInternalError("refusing to store malformed quiz", err)
	}

	now := time.Now().UTC()
	if quiz.ID == "" {
		quiz.ID = util.NewULID()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	return a.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, a.db)

		_, err := exec.ExecContext(ctx, exec.Rebind(`INSERT INTO quizzes (
			id, owner_id, title, description, video_url, video_id, transcript, language, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			quiz.ID, quiz.OwnerID, quiz.Title, util.StringToNullString(quiz.Description),
			quiz.VideoURL, quiz.VideoID, util.StringToNullString(quiz.Transcript),
			util.StringToNullString(quiz.Language), quiz.CreatedAt, quiz.UpdatedAt,
		)
		if err != nil {
			return domain.NewStorageError("failed to save quiz", err)
		}

		for _, question := range quiz.Questions {
			if question.ID == "" {
				question.ID = util.NewULID()
			}
			question.QuizID = quiz.ID

			_, err := exec.ExecContext(ctx, exec.Rebind(`INSERT INTO questions (
				id, quiz_id, question_text, position
			) VALUES (?, ?, ?, ?)`),
				question.ID, question.QuizID, question.Text, question.Position,
			)
			if err != nil {
				return domain.NewStorageError("failed to save question", err)
			}

			for _, answer := range question.Answers {
				if answer.ID == "" {
					answer.ID = util.NewULID()
				}
				answer.QuestionID = question.ID

				_, err := exec.ExecContext(ctx, exec.Rebind(`INSERT INTO answers (
					id, question_id, answer_text, position, is_correct
				) VALUES (?, ?, ?, ?, ?)`),
					answer.ID, answer.QuestionID, answer.Text, answer.Position, util.BoolToInt(answer.IsCorrect),
				)
				if err != nil {
					return domain.NewStorageError("failed to save answer", err)
				}
			}
		}
		return nil
	})
}

// GetQuizByID returns the full aggregate ordered by position, or nil when the quiz does not exist.
func (a *QuizDatabaseAdapter) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	exec := GetExecutor(ctx, a.db)

	var modelQuiz models.Quiz
	err := exec.GetContext(ctx, &modelQuiz, exec.Rebind(`SELECT `+quizColumns+` FROM quizzes WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("failed to get quiz", err)
	}

	var questions []models.Question
	err = exec.SelectContext(ctx, &questions, exec.Rebind(`SELECT `+questionColumns+`
		FROM questions q WHERE q.quiz_id = ? ORDER BY q.position`), id)
	if err != nil {
		return nil, domain.NewStorageError("failed to get questions", err)
	}

	var answers []models.Answer
	err = exec.SelectContext(ctx, &answers, exec.Rebind(`SELECT `+answerColumns+`
		FROM answers a JOIN questions q ON a.question_id = q.id
		WHERE q.quiz_id = ? ORDER BY q.position, a.position`), id)
	if err != nil {
		return nil, domain.NewStorageError("failed to get answers", err)
	}

	return toDomainQuiz(&modelQuiz, questions, answers), nil
}

// ListQuizzesByOwner returns the owner's quizzes, newest first.
func (a *QuizDatabaseAdapter) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*domain.QuizSummary, error) {
	exec := GetExecutor(ctx, a.db)

	var rows []models.QuizSummary
	err := exec.SelectContext(ctx, &rows, exec.Rebind(`SELECT id "id", title "title", description "description",
		video_url "video_url", created_at "created_at", updated_at "updated_at"
		FROM quizzes WHERE owner_id = ? ORDER BY created_at DESC`), ownerID)
	if err != nil {
		return nil, domain.NewStorageError("failed to list quizzes", err)
	}

	summaries := make([]*domain.QuizSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &domain.QuizSummary{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description.String,
			VideoURL:    row.VideoURL,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return summaries, nil
}

// UpdateQuizDetails changes title and/or description. A missing quiz is reported as NotFound.
func (a *QuizDatabaseAdapter) UpdateQuizDetails(ctx context.Context, id string, update domain.QuizDetailsUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, util.StringToNullString(*update.Description))
	}
	args = append(args, id)

	exec := GetExecutor(ctx, a.db)
	result, err := exec.ExecContext(ctx, exec.Rebind(`UPDATE quizzes SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return domain.NewStorageError("failed to update quiz", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.NewNotFoundError("quiz not found")
	}
	return nil
}

// DeleteQuiz removes the quiz; questions, answers, responses and user answers cascade.
func (a *QuizDatabaseAdapter) DeleteQuiz(ctx context.Context, id string) error {
	exec := GetExecutor(ctx, a.db)
	result, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM quizzes WHERE id = ?`), id)
	if err != nil {
		return domain.NewStorageError("failed to delete quiz", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.NewNotFoundError("quiz not found")
	}
	return nil
}

func toDomainQuiz(m *models.Quiz, questions []models.Question, answers []models.Answer) *domain.Quiz {
	quiz := &domain.Quiz{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description.String,
		VideoURL:    m.VideoURL,
		VideoID:     m.VideoID,
		Transcript:  m.Transcript.String,
		Language:    m.Language.String,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Questions:   make([]*domain.Question, 0, len(questions)),
	}

	byID := make(map[string]*domain.Question, len(questions))
	for _, q := range questions {
		question := &domain.Question{
			ID:       q.ID,
			QuizID:   q.QuizID,
			Text:     q.Text,
			Position: q.Position,
			Answers:  make([]*domain.Answer, 0, domain.AnswersPerQuestion),
		}
		byID[q.ID] = question
		quiz.Questions = append(quiz.Questions, question)
	}

	for _, a := range answers {
		question, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		question.Answers = append(question.Answers, &domain.Answer{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			Text:       a.Text,
			Position:   a.Position,
			IsCorrect:  a.IsCorrect != 0,
		})
	}
	return quiz
}
