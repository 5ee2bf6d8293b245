package service

import (
	"context"
	"errors"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/util"

	"go.uber.org/zap"
)

// SessionService drives one user's attempt at a quiz: start, answer, complete.
type SessionService interface {
	Start(ctx context.Context, quizID, userID string) (*domain.QuizResponse, error)
	SubmitAnswer(ctx context.Context, responseID, userID, questionID, answerID string) (*domain.UserAnswer, error)
	Complete(ctx context.Context, responseID, userID string) (*domain.CompletionResult, error)
	GetResponse(ctx context.Context, responseID, userID string) (*domain.ResponseView, error)
}

// errVersionConflict signals that another writer changed the response first.
var errVersionConflict = errors.New("response version conflict")

type sessionService struct {
	quizRepo     domain.QuizRepository
	responseRepo domain.ResponseRepository
	txManager    domain.TransactionManager
	cfg          config.SessionConfig
	logger       *zap.Logger
}

func NewSessionService(
	quizRepo domain.QuizRepository,
	responseRepo domain.ResponseRepository,
	txManager domain.TransactionManager,
	cfg config.SessionConfig,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		quizRepo:     quizRepo,
		responseRepo: responseRepo,
		txManager:    txManager,
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *sessionService) Start(ctx context.Context, quizID, userID string) (*domain.QuizResponse, error) {
	if userID == "" {
		return nil, domain.NewUnauthorizedError("user is required")
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if s.cfg.OwnerOnlyStart && !quiz.IsOwnedBy(userID) {
		return nil, domain.NewForbiddenError("only the quiz owner may start this quiz")
	}

	response := &domain.QuizResponse{
		ID:        util.NewULID(),
		QuizID:    quiz.ID,
		UserID:    userID,
		Status:    domain.StatusInProgress,
		StartedAt: time.Now().UTC(),
		Version:   1,
	}
	if err := s.responseRepo.CreateResponse(ctx, response); err != nil {
		return nil, err
	}

	s.logger.Info("Quiz response started",
		zap.String("response_id", response.ID),
		zap.String("quiz_id", quiz.ID),
		zap.String("user_id", userID))
	return response, nil
}

func (s *sessionService) SubmitAnswer(ctx context.Context, responseID, userID, questionID, answerID string) (*domain.UserAnswer, error) {
	var quiz *domain.Quiz

	for attempt := 0; ; attempt++ {
		response, err := s.loadOwnResponse(ctx, responseID, userID)
		if err != nil {
			return nil, err
		}
		if response.IsCompleted() {
			return nil, domain.NewInvalidStateError("quiz response is already completed").
				WithContext("response_id", responseID)
		}

		if quiz == nil {
			if quiz, err = s.loadQuiz(ctx, response.QuizID); err != nil {
				return nil, err
			}
		}
		question := quiz.QuestionByID(questionID)
		if question == nil {
			return nil, domain.NewNotFoundError("question not found in this quiz")
		}
		answer := question.AnswerByID(answerID)
		if answer == nil {
			return nil, domain.NewNotFoundError("answer not found for this question")
		}

		userAnswer := &domain.UserAnswer{
			ID:         util.NewULID(),
			ResponseID: response.ID,
			QuestionID: question.ID,
			AnswerID:   answer.ID,
			IsCorrect:  answer.IsCorrect,
			AnsweredAt: time.Now().UTC(),
		}
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			ok, err := s.responseRepo.BumpVersion(txCtx, response.ID, response.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			return s.responseRepo.UpsertUserAnswer(txCtx, userAnswer)
		})
		if err == nil {
			return userAnswer, nil
		}
		if !errors.Is(err, errVersionConflict) {
			return nil, err
		}
		if attempt >= s.cfg.MaxConflictRetries {
			return nil, s.conflictError(responseID)
		}
		s.logger.Debug("Answer submit lost a version race, retrying",
			zap.String("response_id", responseID), zap.Int("attempt", attempt+1))
	}
}

func (s *sessionService) Complete(ctx context.Context, responseID, userID string) (*domain.CompletionResult, error) {
	for attempt := 0; ; attempt++ {
		response, err := s.loadOwnResponse(ctx, responseID, userID)
		if err != nil {
			return nil, err
		}
		if response.IsCompleted() {
			alreadyDone := domain.NewInvalidStateError("quiz response is already completed").
				WithContext("response_id", responseID)
			if response.ScorePercentage != nil {
				alreadyDone.WithContext("score_percentage", *response.ScorePercentage)
			}
			return nil, alreadyDone
		}

		var result *domain.CompletionResult
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			answers, err := s.responseRepo.ListUserAnswers(txCtx, response.ID)
			if err != nil {
				return err
			}

			correct := 0
			for _, a := range answers {
				if a.IsCorrect {
					correct++
				}
			}
			// Unanswered questions count as incorrect; the denominator is always the full quiz.
			score := util.Percentage(correct, domain.QuestionsPerQuiz)
			completedAt := time.Now().UTC()

			completed := *response
			completed.Status = domain.StatusCompleted
			completed.CompletedAt = &completedAt
			completed.ScorePercentage = &score

			ok, err := s.responseRepo.CompleteResponse(txCtx, &completed, response.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			result = &domain.CompletionResult{
				ResponseID:      response.ID,
				QuizID:          response.QuizID,
				ScorePercentage: score,
				CorrectCount:    correct,
				AnsweredCount:   len(answers),
				TotalQuestions:  domain.QuestionsPerQuiz,
				CompletedAt:     completedAt,
			}
			return nil
		})
		if err == nil {
			s.logger.Info("Quiz response completed",
				zap.String("response_id", responseID),
				zap.Int("score_percentage", result.ScorePercentage),
				zap.Int("answered", result.AnsweredCount))
			return result, nil
		}
		if !errors.Is(err, errVersionConflict) {
			return nil, err
		}
		if attempt >= s.cfg.MaxConflictRetries {
			return nil, s.conflictError(responseID)
		}
	}
}

func (s *sessionService) GetResponse(ctx context.Context, responseID, userID string) (*domain.ResponseView, error) {
	response, err := s.loadOwnResponse(ctx, responseID, userID)
	if err != nil {
		return nil, err
	}
	answers, err := s.responseRepo.ListUserAnswers(ctx, response.ID)
	if err != nil {
		return nil, err
	}
	return &domain.ResponseView{Response: response, Answers: answers}, nil
}

func (s *sessionService) loadQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	quiz, err := s.quizRepo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, domain.NewNotFoundError("quiz not found")
	}
	return quiz, nil
}

func (s *sessionService) loadOwnResponse(ctx context.Context, responseID, userID string) (*domain.QuizResponse, error) {
	response, err := s.responseRepo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, domain.NewNotFoundError("quiz response not found")
	}
	if response.UserID != userID {
		return nil, domain.NewForbiddenError("quiz response belongs to another user")
	}
	return response, nil
}

func (s *sessionService) conflictError(responseID string) error {
	s.logger.Warn("Giving up after repeated version conflicts", zap.String("response_id", responseID))
	return domain.NewInvalidStateError("quiz response was modified concurrently, try again").
		WithContext("response_id", responseID).
		WithContext("retryable", true)
}
