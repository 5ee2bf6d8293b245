package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/util"

	"go.uber.org/zap"
)

// QuizGenerator produces and stores one quiz per request.
type QuizGenerator interface {
	Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Quiz, error)
}

// GenerationPipeline runs download, transcribe and synthesize strictly in that order and
// persists the result in a single transaction.
type GenerationPipeline struct {
	fetcher     domain.MediaFetcher
	transcriber domain.Transcriber
	synthesizer domain.QuizSynthesizer
	quizRepo    domain.QuizRepository
	txManager   domain.TransactionManager
	cfg         config.PipelineConfig
	logger      *zap.Logger
}

func NewGenerationPipeline(
	fetcher domain.MediaFetcher,
	transcriber domain.Transcriber,
	synthesizer domain.QuizSynthesizer,
	quizRepo domain.QuizRepository,
	txManager domain.TransactionManager,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *GenerationPipeline {
	return &GenerationPipeline{
		fetcher:     fetcher,
		transcriber: transcriber,
		synthesizer: synthesizer,
		quizRepo:    quizRepo,
		txManager:   txManager,
		cfg:         cfg,
		logger:      logger,
	}
}

type jobIDKey struct{}

// withJobID tags ctx so pipeline logs can be correlated with the dispatcher job.
func withJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

func (p *GenerationPipeline) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Quiz, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, domain.NewInvalidInputError("owner id is required")
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return nil, domain.NewInvalidSourceError("video url is required")
	}

	if p.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OverallTimeout)
		defer cancel()
	}

	log := p.logger.With(zap.String("owner_id", req.OwnerID), zap.String("video_url", req.VideoURL))
	if jobID, ok := ctx.Value(jobIDKey{}).(string); ok {
		log = log.With(zap.String("job_id", jobID))
	}
	start := time.Now()

	var audio *domain.AudioFile
	defer func() { _ = audio.Release() }()

	err := p.runStage(ctx, log, domain.StageDownload, p.cfg.DownloadTimeout, func(stageCtx context.Context) error {
		var err error
		audio, err = p.fetcher.Fetch(stageCtx, req.VideoURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("video_id", audio.VideoID))

	var transcript *domain.Transcript
	err = p.runStage(ctx, log, domain.StageTranscribe, p.cfg.TranscribeTimeout, func(stageCtx context.Context) error {
		var err error
		transcript, err = p.transcriber.Transcribe(stageCtx, audio, req.Language)
		return err
	})
	if err != nil {
		return nil, err
	}
	// The transcript is all later stages need.
	_ = audio.Release()

	locale := req.Language
	if locale == "" {
		locale = transcript.Language
	}
	var generated *domain.GeneratedQuiz
	err = p.runStage(ctx, log, domain.StageSynthesize, p.cfg.SynthesizeTimeout, func(stageCtx context.Context) error {
		var err error
		generated, err = p.synthesizer.Synthesize(stageCtx, transcript.Text, locale)
		return err
	})
	if err != nil {
		return nil, err
	}

	quiz := buildQuiz(req, audio, transcript, generated)
	err = p.runStage(ctx, log, domain.StagePersist, 0, func(stageCtx context.Context) error {
		if err := quiz.Validate(); err != nil {
			return domain.NewInternalError("generated quiz is malformed", err)
		}
		return p.txManager.WithTransaction(stageCtx, func(txCtx context.Context) error {
			return p.quizRepo.CreateQuiz(txCtx, quiz)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info("Quiz generated",
		zap.String("quiz_id", quiz.ID),
		zap.Duration("elapsed", time.Since(start)))
	return quiz, nil
}

// runStage runs fn under the stage timeout and tags any failure with the stage.
func (p *GenerationPipeline) runStage(ctx context.Context, log *zap.Logger, stage domain.Stage, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log = log.With(zap.String("stage", string(stage)))
	log.Info("Stage started")
	start := time.Now()

	err := fn(stageCtx)
	if err != nil {
		err = stageError(stageCtx, stage, err)
		log.Warn("Stage failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("Stage finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func stageError(stageCtx context.Context, stage domain.Stage, err error) error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewStageTimeoutError(stage, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewInternalError("generation was cancelled", err).WithStage(stage)
	}
	if domainErr, ok := domain.AsDomainError(err); ok {
		if domainErr.Stage == "" {
			domainErr.WithStage(stage)
		}
		return domainErr
	}
	return domain.NewInternalError("generation failed", err).WithStage(stage)
}

func buildQuiz(req domain.GenerateRequest, audio *domain.AudioFile, transcript *domain.Transcript, generated *domain.GeneratedQuiz) *domain.Quiz {
	now := time.Now().UTC()
	quiz := &domain.Quiz{
		ID:          util.NewULID(),
		OwnerID:     req.OwnerID,
		Title:       generated.Title,
		Description: generated.Description,
		VideoURL:    req.VideoURL,
		VideoID:     audio.VideoID,
		Transcript:  transcript.Text,
		Language:    transcript.Language,
		Questions:   make([]*domain.Question, 0, len(generated.Questions)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if audio.SourceURL != "" {
		quiz.VideoURL = audio.SourceURL
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		quiz.Title = title
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		quiz.Description = description
	}

	for i, g := range generated.Questions {
		question := &domain.Question{
			ID:       util.NewULID(),
			QuizID:   quiz.ID,
			Text:     g.Text,
			Position: i,
			Answers:  make([]*domain.Answer, 0, len(g.Options)),
		}
		for j, option := range g.Options {
			question.Answers = append(question.Answers, &domain.Answer{
				ID:         util.NewULID(),
				QuestionID: question.ID,
				Text:       option,
				Position:   j,
				IsCorrect:  j == g.CorrectIndex,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}
