package service

import (
	"context"
	"sync"
	"time"

	"quiztube/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockQuizRepository ---
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	return m.Called(ctx, quiz).Error(0)
}

func (m *MockQuizRepository) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]*domain.QuizSummary, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QuizSummary), args.Error(1)
}

func (m *MockQuizRepository) UpdateQuizDetails(ctx context.Context, id string, update domain.QuizDetailsUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockQuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// --- MockResponseRepository ---
type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) CreateResponse(ctx context.Context, response *domain.QuizResponse) error {
	return m.Called(ctx, response).Error(0)
}

func (m *MockResponseRepository) GetResponse(ctx context.Context, id string) (*domain.QuizResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuizResponse), args.Error(1)
}

func (m *MockResponseRepository) ListUserAnswers(ctx context.Context, responseID string) ([]*domain.UserAnswer, error) {
	args := m.Called(ctx, responseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UserAnswer), args.Error(1)
}

func (m *MockResponseRepository) UpsertUserAnswer(ctx context.Context, answer *domain.UserAnswer) error {
	return m.Called(ctx, answer).Error(0)
}

func (m *MockResponseRepository) BumpVersion(ctx context.Context, responseID string, expected int64) (bool, error) {
	args := m.Called(ctx, responseID, expected)
	return args.Bool(0), args.Error(1)
}

func (m *MockResponseRepository) CompleteResponse(ctx context.Context, response *domain.QuizResponse, expected int64) (bool, error) {
	args := m.Called(ctx, response, expected)
	return args.Bool(0), args.Error(1)
}

// passthroughTx serialises fn calls, standing in for row locks, and counts them.
type passthroughTx struct {
	mu    sync.Mutex
	calls int
}

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return fn(ctx)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockCache) HSet(ctx context.Context, key string, values map[string]string) error {
	return m.Called(ctx, key, values).Error(0)
}

func (m *MockCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.Called(ctx, key, expiration).Error(0)
}

// memoryCache is a goroutine-safe in-memory domain.Cache.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	hashes map[string]map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, hashes: map[string]map[string]string{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.hashes, key)
	return nil
}

func (c *memoryCache) Ping(ctx context.Context) error { return nil }

func (c *memoryCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]string{}
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (c *memoryCache) HSet(ctx context.Context, key string, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[key]
	if !ok {
		h = map[string]string{}
		c.hashes[key] = h
	}
	for k, v := range values {
		h[k] = v
	}
	return nil
}

func (c *memoryCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

// --- pipeline stage fakes ---
type MockMediaFetcher struct {
	mock.Mock
}

func (m *MockMediaFetcher) Fetch(ctx context.Context, videoURL string) (*domain.AudioFile, error) {
	args := m.Called(ctx, videoURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AudioFile), args.Error(1)
}

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio *domain.AudioFile, languageHint string) (*domain.Transcript, error) {
	args := m.Called(ctx, audio, languageHint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transcript), args.Error(1)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, transcript string, locale string) (*domain.GeneratedQuiz, error) {
	args := m.Called(ctx, transcript, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GeneratedQuiz), args.Error(1)
}

// --- MockDispatcher ---
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Submit(ctx context.Context, req domain.GenerateRequest) (*domain.GenerationJob, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}

func (m *MockDispatcher) Wait(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}

func (m *MockDispatcher) Status(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}
