package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/logger"
	"quiztube/internal/util"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// videoSource is the subset of *youtube.Client the fetcher needs.
type videoSource interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// AudioConverter normalises a downloaded stream into the transcriber's input format.
type AudioConverter interface {
	Convert(ctx context.Context, src, dst string) error
}

// YouTubeFetcher implements domain.MediaFetcher on top of kkdai/youtube and ffmpeg.
type YouTubeFetcher struct {
	source    videoSource
	converter AudioConverter
	cfg       config.MediaConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewYouTubeFetcher(cfg config.MediaConfig) *YouTubeFetcher {
	return newYouTubeFetcher(&youtube.Client{}, NewFFmpegConverter(cfg.FFmpegPath, cfg.SampleRate, cfg.AudioBitrate), cfg)
}

func newYouTubeFetcher(source videoSource, converter AudioConverter, cfg config.MediaConfig) *YouTubeFetcher {
	return &YouTubeFetcher{source: source, converter: converter, cfg: cfg, sleep: sleepContext}
}

// Fetch downloads the audio track of videoURL into the scratch directory as mono MP3.
// The caller owns the returned file and must Release it.
func (f *YouTubeFetcher) Fetch(ctx context.Context, videoURL string) (*domain.AudioFile, error) {
	videoID, err := ValidateURL(videoURL)
	if err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("video_id", videoID))

	var video *youtube.Video
	err = f.withRetry(ctx, func() error {
		var getErr error
		video, getErr = f.source.GetVideoContext(ctx, videoID)
		return getErr
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if f.cfg.MaxDuration > 0 && video.Duration > f.cfg.MaxDuration {
		return nil, domain.NewMediaFormatError(
			fmt.Sprintf("video is %s long, the limit is %s", video.Duration, f.cfg.MaxDuration), nil,
		).WithContext("reason", "too_long")
	}
	if f.cfg.MaxAudioBytes > 0 && EncodedSize(video.Duration, f.cfg.AudioBitrate) > f.cfg.MaxAudioBytes {
		return nil, domain.NewMediaFormatError(
			fmt.Sprintf("a %s recording does not fit the %d byte transcription limit", video.Duration, f.cfg.MaxAudioBytes), nil,
		).WithContext("reason", "too_long")
	}

	format, err := pickAudioFormat(video.Formats)
	if err != nil {
		return nil, err
	}
	if f.cfg.MaxBytes > 0 && format.ContentLength > f.cfg.MaxBytes {
		return nil, tooLargeError(f.cfg.MaxBytes)
	}

	if err := os.MkdirAll(f.cfg.ScratchDir, 0o755); err != nil {
		return nil, domain.NewInternalError("failed to create scratch directory", err)
	}
	name := util.NewULID()
	srcPath := filepath.Join(f.cfg.ScratchDir, name+".src")
	audioPath := filepath.Join(f.cfg.ScratchDir, name+AudioExt)
	defer removeQuietly(srcPath)

	err = f.withRetry(ctx, func() error {
		return f.download(ctx, video, format, srcPath)
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if err := f.converter.Convert(ctx, srcPath, audioPath); err != nil {
		removeQuietly(audioPath)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewMediaFormatError("audio conversion failed", err)
	}
	if f.cfg.MaxAudioBytes > 0 {
		info, err := os.Stat(audioPath)
		if err != nil {
			removeQuietly(audioPath)
			return nil, domain.NewMediaFormatError("converted audio is missing", err)
		}
		if info.Size() > f.cfg.MaxAudioBytes {
			removeQuietly(audioPath)
			return nil, tooLargeError(f.cfg.MaxAudioBytes)
		}
	}

	log.Info("Fetched audio",
		zap.String("itag_mime", format.MimeType),
		zap.Duration("duration", video.Duration),
		zap.String("path", audioPath))

	return &domain.AudioFile{
		Path:      audioPath,
		VideoID:   videoID,
		SourceURL: CanonicalURL(videoID),
		Title:     video.Title,
		Duration:  video.Duration,
	}, nil
}

// download streams one attempt into path, truncating whatever an earlier attempt left.
func (f *YouTubeFetcher) download(ctx context.Context, video *youtube.Video, format *youtube.Format, path string) error {
	stream, size, err := f.source.GetStreamContext(ctx, video, format)
	if err != nil {
		return err
	}
	defer stream.Close()

	if f.cfg.MaxBytes > 0 && size > f.cfg.MaxBytes {
		return tooLargeError(f.cfg.MaxBytes)
	}

	out, err := os.Create(path)
	if err != nil {
		return domain.NewInternalError("failed to create scratch file", err)
	}
	defer out.Close()

	var reader io.Reader = stream
	if f.cfg.MaxBytes > 0 {
		reader = io.LimitReader(stream, f.cfg.MaxBytes+1)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		return err
	}
	if f.cfg.MaxBytes > 0 && written > f.cfg.MaxBytes {
		return tooLargeError(f.cfg.MaxBytes)
	}
	if written == 0 {
		return domain.NewMediaFormatError("audio stream is empty", nil)
	}
	return out.Sync()
}

// withRetry retries fn on transient network failures with a fixed backoff.
func (f *YouTubeFetcher) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= f.cfg.NetworkRetries; attempt++ {
		if attempt > 0 {
			logger.Get().Warn("Retrying media request", zap.Int("attempt", attempt), zap.Error(err))
			if sleepErr := f.sleep(ctx, f.cfg.RetryBackoff); sleepErr != nil {
				return sleepErr
			}
		}
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return err
}

// pickAudioFormat prefers audio-only streams and, among them, the lowest bitrate; speech survives it.
func pickAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var candidates []youtube.Format
	for _, format := range formats {
		if format.AudioChannels > 0 && strings.HasPrefix(format.MimeType, "audio/") {
			candidates = append(candidates, format)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.NewMediaFormatError("video has no audio-only stream", nil).WithContext("reason", "no_audio")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bitrate < candidates[j].Bitrate
	})
	return &candidates[0], nil
}

func tooLargeError(limit int64) *domain.DomainError {
	return domain.NewMediaFormatError(fmt.Sprintf("audio stream exceeds %d bytes", limit), nil).
		WithContext("reason", "too_large")
}

func isTransient(err error) bool {
	if _, ok := domain.AsDomainError(err); ok {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &statusErr) {
		return int(statusErr) >= 500 || int(statusErr) == 429
	}
	return false
}

// classifyError maps library and transport errors onto domain errors.
func classifyError(err error) error {
	if _, ok := domain.AsDomainError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status, ok := playabilityStatus(err); ok {
		return domain.NewSourceUnavailableError("video cannot be played", err).
			WithContext("playability_status", status.Status).
			WithContext("playability_reason", status.Reason)
	}
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return domain.NewSourceUnavailableError("video is not publicly available", err)
	case isTransient(err):
		return domain.NewNetworkError(domain.StageDownload, err)
	}
	var statusErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &statusErr) && (int(statusErr) == 404 || int(statusErr) == 410 || int(statusErr) == 403) {
		return domain.NewSourceUnavailableError("video source refused the request", err)
	}
	return domain.NewSourceUnavailableError("failed to fetch video", err)
}

// playabilityStatus extracts the player status of removed, region-blocked or
// unplayable videos. The library returns the status by value or by pointer
// depending on the code path.
func playabilityStatus(err error) (youtube.ErrPlayabiltyStatus, bool) {
	var byValue youtube.ErrPlayabiltyStatus
	if errors.As(err, &byValue) {
		return byValue, true
	}
	var byPointer *youtube.ErrPlayabiltyStatus
	if errors.As(err, &byPointer) && byPointer != nil {
		return *byPointer, true
	}
	// Last resort for wrapped errors that kept only the text of a playability failure.
	if strings.Contains(err.Error(), "cannot playback and download, status:") {
		return youtube.ErrPlayabiltyStatus{Status: "UNKNOWN", Reason: err.Error()}, true
	}
	return youtube.ErrPlayabiltyStatus{}, false
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Get().Warn("Failed to remove scratch file", zap.String("path", path), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
