package quizgen

import (
	"context"
	"strings"
	"time"

	"quiztube/internal/domain"
	"quiztube/internal/logger"
	"quiztube/internal/util"

	"go.uber.org/zap"
)

// Synthesizer implements domain.QuizSynthesizer on any LLMClient, retrying output that breaks the schema.
// Transport failures get their own small budget per model call.
type Synthesizer struct {
	client         domain.LLMClient
	maxAttempts    int
	networkRetries int
	retryBackoff   time.Duration
}

func NewSynthesizer(client domain.LLMClient, maxAttempts int) *Synthesizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Synthesizer{client: client, maxAttempts: maxAttempts}
}

// WithNetworkRetries sets how often a call failing with a NetworkError is repeated.
func (s *Synthesizer) WithNetworkRetries(retries int, backoff time.Duration) *Synthesizer {
	if retries < 0 {
		retries = 0
	}
	s.networkRetries = retries
	s.retryBackoff = backoff
	return s
}

func (s *Synthesizer) Synthesize(ctx context.Context, transcript string, locale string) (*domain.GeneratedQuiz, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, domain.NewQuizGenerationError("transcript is empty", nil)
	}

	log := logger.Get()
	basePrompt := BuildPrompt(transcript, locale)
	prompt := basePrompt
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		start := time.Now()
		var raw string
		err := util.RetryNetwork(ctx, s.networkRetries, s.retryBackoff, func() error {
			var callErr error
			raw, callErr = s.client.Complete(ctx, prompt)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		quiz, err := ParseGeneratedQuiz(raw)
		if err == nil {
			log.Info("Quiz synthesized",
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)))
			if encoded, encErr := EncodeGeneratedQuiz(quiz); encErr == nil {
				log.Debug("Synthesized quiz payload", zap.ByteString("quiz", encoded))
			}
			return quiz, nil
		}

		lastErr = err
		log.Warn("Model output rejected",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(err))
		prompt = retryPrompt(basePrompt, err)
	}

	if domainErr, ok := domain.AsDomainError(lastErr); ok {
		return nil, domainErr.WithContext("attempts", s.maxAttempts)
	}
	return nil, domain.NewQuizGenerationError("model output rejected", lastErr).WithContext("attempts", s.maxAttempts)
}
