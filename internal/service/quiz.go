package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quiztube/internal/cache"
	"quiztube/internal/domain"
	"quiztube/internal/dto"
	"quiztube/internal/logger"

	"go.uber.org/zap"
)

// JobDispatcher queues generation jobs and reports on them.
type JobDispatcher interface {
	Submit(ctx context.Context, req domain.GenerateRequest) (*domain.GenerationJob, error)
	Wait(ctx context.Context, jobID string) (*domain.GenerationJob, error)
	Status(ctx context.Context, jobID string) (*domain.GenerationJob, error)
}

// QuizService defines the interface for quiz-related operations
type QuizService interface {
	CreateQuiz(ctx context.Context, ownerID string, req *dto.CreateQuizRequest) (*dto.QuizView, error)
	CreateQuizAsync(ctx context.Context, ownerID string, req *dto.CreateQuizRequest) (*dto.JobResponse, error)
	JobStatus(ctx context.Context, ownerID, jobID string) (*dto.JobResponse, error)
	GetQuiz(ctx context.Context, quizID string) (*dto.QuizView, error)
	ListMyQuizzes(ctx context.Context, ownerID string) (*dto.QuizListResponse, error)
	UpdateQuiz(ctx context.Context, ownerID, quizID string, req *dto.UpdateQuizRequest) (*dto.QuizView, error)
	DeleteQuiz(ctx context.Context, ownerID, quizID string) error
}

// quizService implements QuizService
type quizService struct {
	repo       domain.QuizRepository
	dispatcher JobDispatcher
	cache      domain.Cache
	viewTTL    time.Duration
}

// NewQuizService creates a new instance of quizService
func NewQuizService(repo domain.QuizRepository, dispatcher JobDispatcher, c domain.Cache, viewTTL time.Duration) QuizService {
	return &quizService{
		repo:       repo,
		dispatcher: dispatcher,
		cache:      c,
		viewTTL:    viewTTL,
	}
}

// CreateQuiz runs the generation pipeline and waits for the stored quiz.
// If ctx ends first the job keeps running and the caller gets ctx's error.
func (s *quizService) CreateQuiz(ctx context.Context, ownerID string, req *dto.CreateQuizRequest) (*dto.QuizView, error) {
	job, err := s.dispatcher.Submit(ctx, toGenerateRequest(ownerID, req))
	if err != nil {
		return nil, err
	}
	job, err = s.dispatcher.Wait(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return s.GetQuiz(ctx, job.QuizID)
}

func (s *quizService) CreateQuizAsync(ctx context.Context, ownerID string, req *dto.CreateQuizRequest) (*dto.JobResponse, error) {
	job, err := s.dispatcher.Submit(ctx, toGenerateRequest(ownerID, req))
	if err != nil {
		return nil, err
	}
	return dto.NewJobResponse(job), nil
}

// JobStatus reports a job to its owner only; other callers see NOT_FOUND.
func (s *quizService) JobStatus(ctx context.Context, ownerID, jobID string) (*dto.JobResponse, error) {
	job, err := s.dispatcher.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.NewNotFoundError("generation job not found")
	}
	return dto.NewJobResponse(job), nil
}

// GetQuiz returns the player view, served from Redis when possible.
func (s *quizService) GetQuiz(ctx context.Context, quizID string) (*dto.QuizView, error) {
	cacheKey := cache.QuizViewKey(quizID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err == nil {
			var view dto.QuizView
			jsonErr := json.Unmarshal([]byte(cached), &view)
			if jsonErr == nil {
				return &view, nil
			}
			logger.Get().Warn("Failed to decode cached quiz view", zap.String("quiz_id", quizID), zap.Error(jsonErr))
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Failed to read quiz view cache", zap.String("quiz_id", quizID), zap.Error(err))
		}
	}

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	view := dto.NewQuizView(quiz)

	if s.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(data), s.viewTTL); err != nil {
				logger.Get().Warn("Failed to cache quiz view", zap.String("quiz_id", quizID), zap.Error(err))
			}
		}
	}
	return view, nil
}

func (s *quizService) ListMyQuizzes(ctx context.Context, ownerID string) (*dto.QuizListResponse, error) {
	summaries, err := s.repo.ListQuizzesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewQuizListResponse(summaries), nil
}

func (s *quizService) UpdateQuiz(ctx context.Context, ownerID, quizID string, req *dto.UpdateQuizRequest) (*dto.QuizView, error) {
	if req.Title == nil && req.Description == nil {
		return nil, domain.NewInvalidInputError("nothing to update")
	}
	if _, err := s.loadOwnedQuiz(ctx, ownerID, quizID); err != nil {
		return nil, err
	}

	update := domain.QuizDetailsUpdate{Title: req.Title, Description: req.Description}
	if err := s.repo.UpdateQuizDetails(ctx, quizID, update); err != nil {
		return nil, err
	}
	s.invalidate(ctx, quizID)

	logger.Get().Info("Quiz updated", zap.String("quiz_id", quizID), zap.String("owner_id", ownerID))
	return s.GetQuiz(ctx, quizID)
}

func (s *quizService) DeleteQuiz(ctx context.Context, ownerID, quizID string) error {
	if _, err := s.loadOwnedQuiz(ctx, ownerID, quizID); err != nil {
		return err
	}
	if err := s.repo.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx, quizID)

	logger.Get().Info("Quiz deleted", zap.String("quiz_id", quizID), zap.String("owner_id", ownerID))
	return nil
}

func (s *quizService) loadQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	quiz, err := s.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, domain.NewNotFoundError("quiz not found")
	}
	return quiz, nil
}

func (s *quizService) loadOwnedQuiz(ctx context.Context, ownerID, quizID string) (*domain.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsOwnedBy(ownerID) {
		return nil, domain.NewForbiddenError("only the quiz owner may change this quiz")
	}
	return quiz, nil
}

func (s *quizService) invalidate(ctx context.Context, quizID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.QuizViewKey(quizID)); err != nil {
		logger.Get().Warn("Failed to invalidate quiz view cache", zap.String("quiz_id", quizID), zap.Error(err))
	}
}

func toGenerateRequest(ownerID string, req *dto.CreateQuizRequest) domain.GenerateRequest {
	return domain.GenerateRequest{
		OwnerID:     ownerID,
		VideoURL:    req.URL,
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
	}
}
