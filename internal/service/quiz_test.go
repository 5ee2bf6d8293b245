package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"quiztube/internal/cache"
	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/dto"
	"quiztube/internal/logger"
	"quiztube/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "debug", Env: "test"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// sampleQuiz builds a valid 10x4 quiz whose correct option is position i%4 for question i.
func sampleQuiz(ownerID string) *domain.Quiz {
	quiz := &domain.Quiz{
		ID:          util.NewULID(),
		OwnerID:     ownerID,
		Title:       "Cells",
		Description: "The basics of cell biology.",
		VideoURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID:     "dQw4w9WgXcQ",
		CreatedAt:   time.Now().UTC(),
	}
	for i := 0; i < domain.QuestionsPerQuiz; i++ {
		q := &domain.Question{ID: util.NewULID(), QuizID: quiz.ID, Text: fmt.Sprintf("Question %d?", i+1), Position: i}
		for j := 0; j < domain.AnswersPerQuestion; j++ {
			q.Answers = append(q.Answers, &domain.Answer{
				ID:         util.NewULID(),
				QuestionID: q.ID,
				Text:       fmt.Sprintf("Option %d.%d", i+1, j+1),
				Position:   j,
				IsCorrect:  j == i%domain.AnswersPerQuestion,
			})
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz
}

func correctAnswer(q *domain.Question) *domain.Answer {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a
		}
	}
	return nil
}

func wrongAnswer(q *domain.Question) *domain.Answer {
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a
		}
	}
	return nil
}

func TestQuizService_GetQuiz_CachesPlayerView(t *testing.T) {
	repo := new(MockQuizRepository)
	c := newMemoryCache()
	svc := NewQuizService(repo, nil, c, time.Minute)
	quiz := sampleQuiz("owner")
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil).Once()

	view, err := svc.GetQuiz(context.Background(), quiz.ID)
	require.NoError(t, err)
	require.Len(t, view.Questions, domain.QuestionsPerQuiz)
	for i, q := range view.Questions {
		assert.Equal(t, quiz.Questions[i].ID, q.ID)
		require.Len(t, q.Answers, domain.AnswersPerQuestion)
		for j, a := range q.Answers {
			assert.Equal(t, quiz.Questions[i].Answers[j].ID, a.ID)
		}
	}

	raw, err := c.Get(context.Background(), cache.QuizViewKey(quiz.ID))
	require.NoError(t, err)
	assert.NotContains(t, raw, "is_correct")

	again, err := svc.GetQuiz(context.Background(), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Title, again.Title)
	assert.Equal(t, view.Questions, again.Questions)
	repo.AssertExpectations(t)
}

func TestQuizService_GetQuiz_NotFound(t *testing.T) {
	repo := new(MockQuizRepository)
	mockCache := new(MockCache)
	svc := NewQuizService(repo, nil, mockCache, time.Minute)
	mockCache.On("Get", mock.Anything, cache.QuizViewKey("missing")).Return("", domain.ErrCacheMiss)
	repo.On("GetQuizByID", mock.Anything, "missing").Return(nil, nil)

	_, err := svc.GetQuiz(context.Background(), "missing")
	assert.True(t, domain.IsCode(err, domain.ErrNotFound))
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQuizService_GetQuiz_CacheFailureFallsBackToStore(t *testing.T) {
	repo := new(MockQuizRepository)
	mockCache := new(MockCache)
	svc := NewQuizService(repo, nil, mockCache, time.Minute)
	quiz := sampleQuiz("owner")

	mockCache.On("Get", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
	mockCache.On("Set", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(errors.New("connection refused"))
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)

	view, err := svc.GetQuiz(context.Background(), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, view.ID)
}

func TestQuizService_CreateQuiz_WaitsForJob(t *testing.T) {
	repo := new(MockQuizRepository)
	dispatcher := new(MockDispatcher)
	svc := NewQuizService(repo, dispatcher, nil, time.Minute)
	quiz := sampleQuiz("owner")
	req := &dto.CreateQuizRequest{URL: quiz.VideoURL, Title: "My title"}

	dispatcher.On("Submit", mock.Anything, domain.GenerateRequest{OwnerID: "owner", VideoURL: quiz.VideoURL, Title: "My title"}).
		Return(&domain.GenerationJob{ID: "job-1", State: domain.JobQueued}, nil)
	dispatcher.On("Wait", mock.Anything, "job-1").
		Return(&domain.GenerationJob{ID: "job-1", State: domain.JobSucceeded, QuizID: quiz.ID}, nil)
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)

	view, err := svc.CreateQuiz(context.Background(), "owner", req)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, view.ID)
	dispatcher.AssertExpectations(t)
}

func TestQuizService_CreateQuiz_PropagatesPipelineError(t *testing.T) {
	dispatcher := new(MockDispatcher)
	svc := NewQuizService(new(MockQuizRepository), dispatcher, nil, time.Minute)

	dispatcher.On("Submit", mock.Anything, mock.Anything).Return(&domain.GenerationJob{ID: "job-1"}, nil)
	dispatcher.On("Wait", mock.Anything, "job-1").
		Return(&domain.GenerationJob{ID: "job-1", State: domain.JobFailed}, domain.NewInvalidSourceError("not a youtube url"))

	_, err := svc.CreateQuiz(context.Background(), "owner", &dto.CreateQuizRequest{URL: "https://vimeo.com/1"})
	assert.True(t, domain.IsCode(err, domain.ErrInvalidSource))
}

func TestQuizService_JobStatus_HidesOtherOwners(t *testing.T) {
	dispatcher := new(MockDispatcher)
	svc := NewQuizService(new(MockQuizRepository), dispatcher, nil, time.Minute)
	dispatcher.On("Status", mock.Anything, "job-1").
		Return(&domain.GenerationJob{ID: "job-1", OwnerID: "alice", State: domain.JobFailed, ErrorCode: domain.ErrQuotaExceeded, Stage: domain.StageTranscribe, Retryable: true}, nil)

	_, err := svc.JobStatus(context.Background(), "bob", "job-1")
	assert.True(t, domain.IsCode(err, domain.ErrNotFound))

	resp, err := svc.JobStatus(context.Background(), "alice", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.State)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
	assert.Equal(t, "transcribe", resp.Error.Stage)
	assert.True(t, resp.Error.Retryable)
}

func TestQuizService_UpdateQuiz(t *testing.T) {
	repo := new(MockQuizRepository)
	c := newMemoryCache()
	svc := NewQuizService(repo, nil, c, time.Minute)
	quiz := sampleQuiz("owner")
	title := "Renamed"

	stale, _ := json.Marshal(dto.NewQuizView(quiz))
	require.NoError(t, c.Set(context.Background(), cache.QuizViewKey(quiz.ID), string(stale), time.Minute))

	renamed := *quiz
	renamed.Title = title
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil).Once()
	repo.On("UpdateQuizDetails", mock.Anything, quiz.ID, domain.QuizDetailsUpdate{Title: &title}).Return(nil)
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(&renamed, nil).Once()

	view, err := svc.UpdateQuiz(context.Background(), "owner", quiz.ID, &dto.UpdateQuizRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", view.Title)
	repo.AssertExpectations(t)
}

func TestQuizService_UpdateQuiz_Rejections(t *testing.T) {
	repo := new(MockQuizRepository)
	svc := NewQuizService(repo, nil, nil, time.Minute)
	quiz := sampleQuiz("owner")
	title := "x"
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)

	_, err := svc.UpdateQuiz(context.Background(), "owner", quiz.ID, &dto.UpdateQuizRequest{})
	assert.True(t, domain.IsCode(err, domain.ErrInvalidInput))

	_, err = svc.UpdateQuiz(context.Background(), "intruder", quiz.ID, &dto.UpdateQuizRequest{Title: &title})
	assert.True(t, domain.IsCode(err, domain.ErrForbidden))
	repo.AssertNotCalled(t, "UpdateQuizDetails", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuizService_DeleteQuiz(t *testing.T) {
	repo := new(MockQuizRepository)
	mockCache := new(MockCache)
	svc := NewQuizService(repo, nil, mockCache, time.Minute)
	quiz := sampleQuiz("owner")
	repo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)
	repo.On("DeleteQuiz", mock.Anything, quiz.ID).Return(nil).Once()
	mockCache.On("Delete", mock.Anything, cache.QuizViewKey(quiz.ID)).Return(nil).Once()

	err := svc.DeleteQuiz(context.Background(), "intruder", quiz.ID)
	assert.True(t, domain.IsCode(err, domain.ErrForbidden))

	require.NoError(t, svc.DeleteQuiz(context.Background(), "owner", quiz.ID))
	repo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestQuizService_ListMyQuizzes(t *testing.T) {
	repo := new(MockQuizRepository)
	svc := NewQuizService(repo, nil, nil, time.Minute)
	repo.On("ListQuizzesByOwner", mock.Anything, "owner").Return([]*domain.QuizSummary{
		{ID: "a", Title: "First"}, {ID: "b", Title: "Second"},
	}, nil)

	resp, err := svc.ListMyQuizzes(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, resp.Quizzes, 2)
	assert.Equal(t, "Second", resp.Quizzes[1].Title)
}
