package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"quiztube/internal/config"
	"quiztube/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryResponses is an in-memory ResponseRepository with the same version semantics as the SQL adapter.
type memoryResponses struct {
	mu        sync.Mutex
	responses map[string]domain.QuizResponse
	answers   map[string]map[string]domain.UserAnswer
	positions map[string]int
}

func newMemoryResponses(quiz *domain.Quiz) *memoryResponses {
	m := &memoryResponses{
		responses: map[string]domain.QuizResponse{},
		answers:   map[string]map[string]domain.UserAnswer{},
		positions: map[string]int{},
	}
	for _, q := range quiz.Questions {
		m.positions[q.ID] = q.Position
	}
	return m
}

func (m *memoryResponses) CreateResponse(ctx context.Context, response *domain.QuizResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[response.ID] = *response
	return nil
}

func (m *memoryResponses) GetResponse(ctx context.Context, id string) (*domain.QuizResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memoryResponses) ListUserAnswers(ctx context.Context, responseID string) ([]*domain.UserAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.UserAnswer
	for _, a := range m.answers[responseID] {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return m.positions[out[i].QuestionID] < m.positions[out[j].QuestionID] })
	return out, nil
}

func (m *memoryResponses) UpsertUserAnswer(ctx context.Context, answer *domain.UserAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answers[answer.ResponseID] == nil {
		m.answers[answer.ResponseID] = map[string]domain.UserAnswer{}
	}
	m.answers[answer.ResponseID][answer.QuestionID] = *answer
	return nil
}

func (m *memoryResponses) BumpVersion(ctx context.Context, responseID string, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[responseID]
	if !ok || r.Version != expected || r.Status != domain.StatusInProgress {
		return false, nil
	}
	r.Version++
	m.responses[responseID] = r
	return true, nil
}

func (m *memoryResponses) CompleteResponse(ctx context.Context, response *domain.QuizResponse, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[response.ID]
	if !ok || r.Version != expected || r.Status != domain.StatusInProgress {
		return false, nil
	}
	r.Status = domain.StatusCompleted
	r.CompletedAt = response.CompletedAt
	r.ScorePercentage = response.ScorePercentage
	r.Version++
	m.responses[response.ID] = r
	return true, nil
}

type sessionFixture struct {
	quiz      *domain.Quiz
	quizRepo  *MockQuizRepository
	responses *memoryResponses
	svc       SessionService
}

func newSessionFixture(cfg config.SessionConfig) *sessionFixture {
	quiz := sampleQuiz("owner")
	quizRepo := new(MockQuizRepository)
	quizRepo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)
	quizRepo.On("GetQuizByID", mock.Anything, mock.Anything).Return(nil, nil)
	responses := newMemoryResponses(quiz)
	return &sessionFixture{
		quiz:      quiz,
		quizRepo:  quizRepo,
		responses: responses,
		svc:       NewSessionService(quizRepo, responses, &passthroughTx{}, cfg, zap.NewNop()),
	}
}

func TestSessionService_FullRun(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{MaxConflictRetries: 2})
	ctx := context.Background()

	response, err := f.svc.Start(ctx, f.quiz.ID, "player")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, response.Status)
	assert.Nil(t, response.ScorePercentage)

	// 7 correct, 3 wrong
	for i, q := range f.quiz.Questions {
		answer := correctAnswer(q)
		if i >= 7 {
			answer = wrongAnswer(q)
		}
		recorded, err := f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, answer.ID)
		require.NoError(t, err)
		assert.Equal(t, i < 7, recorded.IsCorrect)
	}

	result, err := f.svc.Complete(ctx, response.ID, "player")
	require.NoError(t, err)
	assert.Equal(t, 70, result.ScorePercentage)
	assert.Equal(t, 7, result.CorrectCount)
	assert.Equal(t, 10, result.AnsweredCount)
	assert.Equal(t, domain.QuestionsPerQuiz, result.TotalQuestions)

	view, err := f.svc.GetResponse(ctx, response.ID, "player")
	require.NoError(t, err)
	assert.True(t, view.Response.IsCompleted())
	require.NotNil(t, view.Response.ScorePercentage)
	assert.Equal(t, 70, *view.Response.ScorePercentage)
	assert.Len(t, view.Answers, 10)
}

func TestSessionService_UnansweredCountAsIncorrect(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{})
	ctx := context.Background()
	response, err := f.svc.Start(ctx, f.quiz.ID, "player")
	require.NoError(t, err)

	// 8 answered, 6 of them correct
	for i, q := range f.quiz.Questions[:8] {
		answer := correctAnswer(q)
		if i >= 6 {
			answer = wrongAnswer(q)
		}
		_, err := f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, answer.ID)
		require.NoError(t, err)
	}

	result, err := f.svc.Complete(ctx, response.ID, "player")
	require.NoError(t, err)
	assert.Equal(t, 60, result.ScorePercentage)
	assert.Equal(t, 8, result.AnsweredCount)
}

func TestSessionService_CompleteIsNotRepeatable(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{})
	ctx := context.Background()
	response, _ := f.svc.Start(ctx, f.quiz.ID, "player")
	q := f.quiz.Questions[0]
	_, err := f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, correctAnswer(q).ID)
	require.NoError(t, err)

	first, err := f.svc.Complete(ctx, response.ID, "player")
	require.NoError(t, err)
	assert.Equal(t, 10, first.ScorePercentage)
	before, _ := f.responses.GetResponse(ctx, response.ID)

	_, err = f.svc.Complete(ctx, response.ID, "player")
	domainErr, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidState, domainErr.Code)
	assert.Equal(t, 10, domainErr.Details()["score_percentage"])

	after, _ := f.responses.GetResponse(ctx, response.ID)
	assert.Equal(t, before, after)
}

func TestSessionService_SubmitAfterCompletion(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{})
	ctx := context.Background()
	response, _ := f.svc.Start(ctx, f.quiz.ID, "player")
	_, err := f.svc.Complete(ctx, response.ID, "player")
	require.NoError(t, err)

	q := f.quiz.Questions[0]
	_, err = f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, correctAnswer(q).ID)
	assert.True(t, domain.IsCode(err, domain.ErrInvalidState))

	answers, _ := f.responses.ListUserAnswers(ctx, response.ID)
	assert.Empty(t, answers)
}

func TestSessionService_LastWriteWins(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{})
	ctx := context.Background()
	response, _ := f.svc.Start(ctx, f.quiz.ID, "player")
	q := f.quiz.Questions[0]

	_, err := f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, wrongAnswer(q).ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, correctAnswer(q).ID)
	require.NoError(t, err)

	answers, _ := f.responses.ListUserAnswers(ctx, response.ID)
	require.Len(t, answers, 1)
	assert.Equal(t, correctAnswer(q).ID, answers[0].AnswerID)
	assert.True(t, answers[0].IsCorrect)
}

func TestSessionService_Rejections(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{})
	ctx := context.Background()
	response, err := f.svc.Start(ctx, f.quiz.ID, "player")
	require.NoError(t, err)
	q0, q1 := f.quiz.Questions[0], f.quiz.Questions[1]

	_, err = f.svc.Start(ctx, "missing", "player")
	assert.True(t, domain.IsCode(err, domain.ErrNotFound), "unknown quiz")

	_, err = f.svc.SubmitAnswer(ctx, "missing", "player", q0.ID, correctAnswer(q0).ID)
	assert.True(t, domain.IsCode(err, domain.ErrNotFound), "unknown response")

	_, err = f.svc.SubmitAnswer(ctx, response.ID, "someone-else", q0.ID, correctAnswer(q0).ID)
	assert.True(t, domain.IsCode(err, domain.ErrForbidden), "foreign response")

	_, err = f.svc.SubmitAnswer(ctx, response.ID, "player", "not-a-question", correctAnswer(q0).ID)
	assert.True(t, domain.IsCode(err, domain.ErrNotFound), "unknown question")

	_, err = f.svc.SubmitAnswer(ctx, response.ID, "player", q0.ID, correctAnswer(q1).ID)
	assert.True(t, domain.IsCode(err, domain.ErrNotFound), "answer of another question")

	_, err = f.svc.Complete(ctx, response.ID, "someone-else")
	assert.True(t, domain.IsCode(err, domain.ErrForbidden), "foreign complete")

	_, err = f.svc.GetResponse(ctx, response.ID, "someone-else")
	assert.True(t, domain.IsCode(err, domain.ErrForbidden), "foreign view")
}

func TestSessionService_OwnerOnlyStart(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{OwnerOnlyStart: true})

	_, err := f.svc.Start(context.Background(), f.quiz.ID, "player")
	assert.True(t, domain.IsCode(err, domain.ErrForbidden))

	_, err = f.svc.Start(context.Background(), f.quiz.ID, "owner")
	assert.NoError(t, err)
}

func TestSessionService_ConcurrentSubmitAndComplete(t *testing.T) {
	f := newSessionFixture(config.SessionConfig{MaxConflictRetries: 20})
	ctx := context.Background()
	response, _ := f.svc.Start(ctx, f.quiz.ID, "player")

	var wg sync.WaitGroup
	for _, q := range f.quiz.Questions {
		wg.Add(1)
		go func(q *domain.Question) {
			defer wg.Done()
			_, err := f.svc.SubmitAnswer(ctx, response.ID, "player", q.ID, correctAnswer(q).ID)
			if err != nil {
				assert.True(t, domain.IsCode(err, domain.ErrInvalidState), err.Error())
			}
		}(q)
	}
	var result *domain.CompletionResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		result, err = f.svc.Complete(ctx, response.ID, "player")
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Whatever interleaving won, the stored score matches the answers stored before completion.
	require.NotNil(t, result)
	answers, _ := f.responses.ListUserAnswers(ctx, response.ID)
	assert.Equal(t, len(answers)*10, result.ScorePercentage)
	stored, _ := f.responses.GetResponse(ctx, response.ID)
	assert.Equal(t, result.ScorePercentage, *stored.ScorePercentage)
}

func TestSessionService_ConflictBudgetExhausted(t *testing.T) {
	quiz := sampleQuiz("owner")
	quizRepo := new(MockQuizRepository)
	quizRepo.On("GetQuizByID", mock.Anything, quiz.ID).Return(quiz, nil)
	responses := new(MockResponseRepository)
	response := &domain.QuizResponse{ID: "r1", QuizID: quiz.ID, UserID: "player", Status: domain.StatusInProgress, Version: 3}
	responses.On("GetResponse", mock.Anything, "r1").Return(response, nil)
	responses.On("BumpVersion", mock.Anything, "r1", int64(3)).Return(false, nil)

	svc := NewSessionService(quizRepo, responses, &passthroughTx{}, config.SessionConfig{MaxConflictRetries: 2}, zap.NewNop())
	q := quiz.Questions[0]
	_, err := svc.SubmitAnswer(context.Background(), "r1", "player", q.ID, correctAnswer(q).ID)

	assert.True(t, domain.IsCode(err, domain.ErrInvalidState))
	responses.AssertNumberOfCalls(t, "BumpVersion", 3)
	responses.AssertNotCalled(t, "UpsertUserAnswer", mock.Anything, mock.Anything)
}
