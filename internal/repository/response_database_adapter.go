package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"quiztube/internal/domain"
	"quiztube/internal/repository/models"
	"quiztube/internal/util"

	"github.com/jmoiron/sqlx"
)

const responseColumns = `id "id", quiz_id "quiz_id", user_id "user_id", status "status",
	started_at "started_at", completed_at "completed_at", score_percentage "score_percentage", version "version"`

// ResponseDatabaseAdapter implements domain.ResponseRepository using sqlx.DB
type ResponseDatabaseAdapter struct {
	db *sqlx.DB
}

func NewResponseDatabaseAdapter(db *sqlx.DB) domain.ResponseRepository {
	return &ResponseDatabaseAdapter{db: db}
}

func (a *ResponseDatabaseAdapter) CreateResponse(ctx context.Context, response *domain.QuizResponse) error {
	if response.ID == "" {
		response.ID = util.NewULID()
	}
	if response.StartedAt.IsZero() {
		response.StartedAt = time.Now().UTC()
	}
	if response.Status == "" {
		response.Status = domain.StatusInProgress
	}

	exec := GetExecutor(ctx, a.db)
	_, err := exec.ExecContext(ctx, exec.Rebind(`INSERT INTO quiz_responses (
		id, quiz_id, user_id, status, started_at, completed_at, score_percentage, version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		response.ID, response.QuizID, response.UserID, string(response.Status), response.StartedAt,
		util.TimePtrToNullTime(response.CompletedAt), util.IntPtrToNullInt64(response.ScorePercentage),
		response.Version,
	)
	if err != nil {
		return domain.NewStorageError("failed to create quiz response", err)
	}
	return nil
}

// GetResponse returns nil when the response does not exist.
func (a *ResponseDatabaseAdapter) GetResponse(ctx context.Context, id string) (*domain.QuizResponse, error) {
	exec := GetExecutor(ctx, a.db)

	var model models.QuizResponse
	err := exec.GetContext(ctx, &model, exec.Rebind(`SELECT `+responseColumns+` FROM quiz_responses WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("failed to get quiz response", err)
	}
	return toDomainResponse(&model), nil
}

// ListUserAnswers returns the recorded answers in question order.
func (a *ResponseDatabaseAdapter) ListUserAnswers(ctx context.Context, responseID string) ([]*domain.UserAnswer, error) {
	exec := GetExecutor(ctx, a.db)

	var rows []models.UserAnswer
	err := exec.SelectContext(ctx, &rows, exec.Rebind(`SELECT ua.id "id", ua.response_id "response_id",
		ua.question_id "question_id", ua.answer_id "answer_id", ua.is_correct "is_correct", ua.answered_at "answered_at"
		FROM user_answers ua JOIN questions q ON q.id = ua.question_id
		WHERE ua.response_id = ? ORDER BY q.position`), responseID)
	if err != nil {
		return nil, domain.NewStorageError("failed to list user answers", err)
	}

	answers := make([]*domain.UserAnswer, 0, len(rows))
	for i := range rows {
		answers = append(answers, toDomainUserAnswer(&rows[i]))
	}
	return answers, nil
}

// UpsertUserAnswer replaces any earlier answer to the same question. Call it inside a transaction.
func (a *ResponseDatabaseAdapter) UpsertUserAnswer(ctx context.Context, answer *domain.UserAnswer) error {
	if answer.ID == "" {
		answer.ID = util.NewULID()
	}
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = time.Now().UTC()
	}

	exec := GetExecutor(ctx, a.db)
	_, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM user_answers WHERE response_id = ? AND question_id = ?`),
		answer.ResponseID, answer.QuestionID)
	if err != nil {
		return domain.NewStorageError("failed to replace user answer", err)
	}

	_, err = exec.ExecContext(ctx, exec.Rebind(`INSERT INTO user_answers (
		id, response_id, question_id, answer_id, is_correct, answered_at
	) VALUES (?, ?, ?, ?, ?, ?)`),
		answer.ID, answer.ResponseID, answer.QuestionID, answer.AnswerID, util.BoolToInt(answer.IsCorrect), answer.AnsweredAt,
	)
	if err != nil {
		return domain.NewStorageError("failed to save user answer", err)
	}
	return nil
}

func (a *ResponseDatabaseAdapter) BumpVersion(ctx context.Context, responseID string, expected int64) (bool, error) {
	exec := GetExecutor(ctx, a.db)
	result, err := exec.ExecContext(ctx, exec.Rebind(`UPDATE quiz_responses SET version = version + 1
		WHERE id = ? AND version = ? AND status = ?`), responseID, expected, string(domain.StatusInProgress))
	if err != nil {
		return false, domain.NewStorageError("failed to bump response version", err)
	}
	return rowsChanged(result)
}

// CompleteResponse writes status, completed_at and score together, guarded by the version.
func (a *ResponseDatabaseAdapter) CompleteResponse(ctx context.Context, response *domain.QuizResponse, expected int64) (bool, error) {
	exec := GetExecutor(ctx, a.db)
	result, err := exec.ExecContext(ctx, exec.Rebind(`UPDATE quiz_responses
		SET status = ?, completed_at = ?, score_percentage = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = ?`),
		string(domain.StatusCompleted), util.TimePtrToNullTime(response.CompletedAt),
		util.IntPtrToNullInt64(response.ScorePercentage), response.ID, expected, string(domain.StatusInProgress),
	)
	if err != nil {
		return false, domain.NewStorageError("failed to complete quiz response", err)
	}
	return rowsChanged(result)
}

func rowsChanged(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("failed to read affected rows", err)
	}
	return affected == 1, nil
}

func toDomainResponse(m *models.QuizResponse) *domain.QuizResponse {
	return &domain.QuizResponse{
		ID:              m.ID,
		QuizID:          m.QuizID,
		UserID:          m.UserID,
		Status:          domain.ResponseStatus(m.Status),
		StartedAt:       m.StartedAt,
		CompletedAt:     util.NullTimeToPtr(m.CompletedAt),
		ScorePercentage: util.NullInt64ToIntPtr(m.ScorePercentage),
		Version:         m.Version,
	}
}

func toDomainUserAnswer(m *models.UserAnswer) *domain.UserAnswer {
	return &domain.UserAnswer{
		ID:         m.ID,
		ResponseID: m.ResponseID,
		QuestionID: m.QuestionID,
		AnswerID:   m.AnswerID,
		IsCorrect:  m.IsCorrect != 0,
		AnsweredAt: m.AnsweredAt,
	}
}
