package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/logger"
	"quiztube/internal/util"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// WhisperTranscriber implements domain.Transcriber with the OpenAI audio transcription API.
type WhisperTranscriber struct {
	client          *openai.Client
	model           string
	defaultLanguage string
	maxNoSpeechProb float64
	maxUploadBytes  int64
	networkRetries  int
	retryBackoff    time.Duration
}

var (
	sharedOnce        sync.Once
	sharedTranscriber *WhisperTranscriber
)

// Shared returns the process-wide transcriber, building it on first use.
// Later calls ignore cfg.
func Shared(cfg config.TranscriptionConfig) *WhisperTranscriber {
	sharedOnce.Do(func() {
		sharedTranscriber = NewWhisperTranscriber(cfg)
		logger.Get().Info("Transcriber initialised", zap.String("model", sharedTranscriber.model))
	})
	return sharedTranscriber
}

func NewWhisperTranscriber(cfg config.TranscriptionConfig) *WhisperTranscriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client:          openai.NewClientWithConfig(clientCfg),
		model:           model,
		defaultLanguage: cfg.Language,
		maxNoSpeechProb: cfg.MaxNoSpeechProb,
		maxUploadBytes:  cfg.MaxUploadBytes,
		networkRetries:  cfg.NetworkRetries,
		retryBackoff:    cfg.RetryBackoff,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio *domain.AudioFile, languageHint string) (*domain.Transcript, error) {
	if audio == nil || audio.Path == "" {
		return nil, domain.NewTranscriptionError("no audio to transcribe", nil)
	}
	language := languageHint
	if language == "" {
		language = w.defaultLanguage
	}

	if w.maxUploadBytes > 0 {
		info, err := os.Stat(audio.Path)
		if err != nil {
			return nil, domain.NewTranscriptionError("audio file is not readable", err)
		}
		if info.Size() > w.maxUploadBytes {
			return nil, uploadTooLarge(fmt.Sprintf("audio is %d bytes, the upload limit is %d", info.Size(), w.maxUploadBytes), nil)
		}
	}

	start := time.Now()
	var resp openai.AudioResponse
	err := util.RetryNetwork(ctx, w.networkRetries, w.retryBackoff, func() error {
		var callErr error
		resp, callErr = w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    w.model,
			FilePath: audio.Path,
			Language: language,
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if callErr != nil {
			return classifyError(ctx, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, domain.NewTranscriptionError("audio contains no recognisable speech", nil)
	}

	if w.maxNoSpeechProb > 0 && len(resp.Segments) > 0 {
		var sum float64
		for _, segment := range resp.Segments {
			sum += segment.NoSpeechProb
		}
		if mean := sum / float64(len(resp.Segments)); mean > w.maxNoSpeechProb {
			return nil, domain.NewTranscriptionError("transcript confidence too low", nil).
				WithContext("no_speech_prob", mean)
		}
	}

	detected := resp.Language
	if language != "" {
		detected = language
	}

	logger.Get().Info("Transcribed audio",
		zap.String("video_id", audio.VideoID),
		zap.String("language", detected),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return &domain.Transcript{
		Text:     text,
		Language: detected,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}, nil
}

// classifyError maps go-openai errors onto domain errors. Context errors pass through untouched.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusRequestEntityTooLarge {
			return uploadTooLarge("audio exceeds the transcription upload limit", err)
		}
		if isQuotaError(apiErr.HTTPStatusCode, apiErr.Code, apiErr.Type) {
			return domain.NewQuotaExceededError(domain.StageTranscribe, err)
		}
		if apiErr.HTTPStatusCode >= http.StatusInternalServerError {
			return domain.NewNetworkError(domain.StageTranscribe, err)
		}
		return domain.NewTranscriptionError(fmt.Sprintf("transcription rejected: %s", apiErr.Message), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusRequestEntityTooLarge {
			return uploadTooLarge("audio exceeds the transcription upload limit", err)
		}
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return domain.NewQuotaExceededError(domain.StageTranscribe, err)
		}
		if reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= http.StatusInternalServerError {
			return domain.NewNetworkError(domain.StageTranscribe, err)
		}
		return domain.NewTranscriptionError("transcription request failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewNetworkError(domain.StageTranscribe, err)
	}
	return domain.NewTranscriptionError("transcription failed", err)
}

// uploadTooLarge rejects audio the backend will never accept; the media is at fault, not the speech.
func uploadTooLarge(message string, err error) *domain.DomainError {
	return domain.NewMediaFormatError(message, err).
		WithStage(domain.StageTranscribe).
		WithContext("reason", "too_large")
}

func isQuotaError(status int, code any, errType string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if s, ok := code.(string); ok && s == "insufficient_quota" {
		return true
	}
	return errType == "insufficient_quota"
}
