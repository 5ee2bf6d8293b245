package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiztube/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var responseRowColumns = []string{"id", "quiz_id", "user_id", "status", "started_at", "completed_at", "score_percentage", "version"}

func TestResponseDatabaseAdapter_CreateAndGet(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	repo := NewResponseDatabaseAdapter(db)
	ctx := context.Background()

	response := &domain.QuizResponse{QuizID: "quiz-1", UserID: "user-2"}
	mock.ExpectExec(`INSERT INTO quiz_responses`).
		WithArgs(sqlmock.AnyArg(), "quiz-1", "user-2", "in_progress", sqlmock.AnyArg(), nil, nil, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CreateResponse(ctx, response))
	assert.NotEmpty(t, response.ID)
	assert.Equal(t, domain.StatusInProgress, response.Status)

	completedAt := time.Now().UTC()
	mock.ExpectQuery(`FROM quiz_responses WHERE id = \?`).WithArgs(response.ID).
		WillReturnRows(sqlmock.NewRows(responseRowColumns).
			AddRow(response.ID, "quiz-1", "user-2", "completed", response.StartedAt, completedAt, 70, 4))
	got, err := repo.GetResponse(ctx, response.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsCompleted())
	require.NotNil(t, got.ScorePercentage)
	assert.Equal(t, 70, *got.ScorePercentage)
	assert.Equal(t, int64(4), got.Version)

	mock.ExpectQuery(`FROM quiz_responses WHERE id = \?`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(responseRowColumns))
	got, err = repo.GetResponse(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseDatabaseAdapter_UpsertUserAnswer(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	repo := NewResponseDatabaseAdapter(db)

	answer := &domain.UserAnswer{ResponseID: "resp-1", QuestionID: "q1", AnswerID: "q1-a2", IsCorrect: true}
	mock.ExpectExec(`DELETE FROM user_answers WHERE response_id = \? AND question_id = \?`).
		WithArgs("resp-1", "q1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_answers`).
		WithArgs(sqlmock.AnyArg(), "resp-1", "q1", "q1-a2", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertUserAnswer(context.Background(), answer))
	assert.NotEmpty(t, answer.ID)
	assert.False(t, answer.AnsweredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseDatabaseAdapter_ListUserAnswers(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	repo := NewResponseDatabaseAdapter(db)
	now := time.Now()

	mock.ExpectQuery(`FROM user_answers ua JOIN questions q .* ORDER BY q.position`).WithArgs("resp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "response_id", "question_id", "answer_id", "is_correct", "answered_at"}).
			AddRow("ua1", "resp-1", "q0", "q0-a1", 1, now).
			AddRow("ua2", "resp-1", "q1", "q1-a0", 0, now))

	answers, err := repo.ListUserAnswers(context.Background(), "resp-1")
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.True(t, answers[0].IsCorrect)
	assert.False(t, answers[1].IsCorrect)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseDatabaseAdapter_VersionGuards(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	repo := NewResponseDatabaseAdapter(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE quiz_responses SET version = version \+ 1`).
		WithArgs("resp-1", int64(2), "in_progress").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.BumpVersion(ctx, "resp-1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE quiz_responses SET version = version \+ 1`).
		WithArgs("resp-1", int64(2), "in_progress").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.BumpVersion(ctx, "resp-1", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	score := 70
	completedAt := time.Now().UTC()
	response := &domain.QuizResponse{ID: "resp-1", CompletedAt: &completedAt, ScorePercentage: &score}
	mock.ExpectExec(`UPDATE quiz_responses\s+SET status = \?, completed_at = \?, score_percentage = \?`).
		WithArgs("completed", sqlmock.AnyArg(), sqlmock.AnyArg(), "resp-1", int64(3), "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err = repo.CompleteResponse(ctx, response, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE quiz_responses`).WillReturnError(errors.New("deadlock"))
	_, err = repo.CompleteResponse(ctx, response, 3)
	assert.True(t, domain.IsCode(err, domain.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_JoinsExistingTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	tm := NewTransactionManagerAdapter(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		return tm.WithTransaction(ctx, func(inner context.Context) error {
			calls++
			assert.True(t, hasTransaction(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()
	tm := NewTransactionManagerAdapter(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
