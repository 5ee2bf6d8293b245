package transcriber

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"quiztube/internal/cache"
	"quiztube/internal/domain"
	"quiztube/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedTranscriber stores transcripts per video and language, and collapses concurrent
// transcriptions of the same video into one upstream call.
//
// The shared call is not bound to any one caller: it runs for at most callTimeout
// and each caller stops waiting when its own context ends.
type CachedTranscriber struct {
	next        domain.Transcriber
	cache       domain.Cache
	ttl         time.Duration
	callTimeout time.Duration
	sfGroup     singleflight.Group
}

func NewCachedTranscriber(next domain.Transcriber, c domain.Cache, ttl, callTimeout time.Duration) *CachedTranscriber {
	return &CachedTranscriber{next: next, cache: c, ttl: ttl, callTimeout: callTimeout}
}

func (c *CachedTranscriber) Transcribe(ctx context.Context, audio *domain.AudioFile, languageHint string) (*domain.Transcript, error) {
	if c.cache == nil || audio == nil || audio.VideoID == "" {
		return c.next.Transcribe(ctx, audio, languageHint)
	}
	log := logger.Get().With(zap.String("video_id", audio.VideoID))
	cacheKey := cache.TranscriptKey(audio.VideoID, languageHint)

	cached, err := c.cache.Get(ctx, cacheKey)
	switch {
	case err == nil:
		transcript, decodeErr := decodeTranscript(cached)
		if decodeErr == nil {
			log.Debug("Transcript cache hit")
			return transcript, nil
		}
		log.Warn("Failed to decode cached transcript", zap.Error(decodeErr))
	case errors.Is(err, domain.ErrCacheMiss):
		log.Debug("Transcript cache miss")
	default:
		log.Warn("Failed to read transcript cache", zap.Error(err))
	}

	ch := c.sfGroup.DoChan(cacheKey, func() (interface{}, error) {
		callCtx, cancel := c.sharedContext(ctx)
		defer cancel()
		transcript, err := c.next.Transcribe(callCtx, audio, languageHint)
		if err != nil {
			return nil, err
		}
		if encoded, encodeErr := encodeTranscript(transcript); encodeErr != nil {
			log.Warn("Failed to encode transcript for caching", zap.Error(encodeErr))
		} else if setErr := c.cache.Set(callCtx, cacheKey, encoded, c.ttl); setErr != nil {
			log.Warn("Failed to cache transcript", zap.Error(setErr))
		}
		return transcript, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Shared {
		log.Debug("Transcript shared with a concurrent request")
	}
	if res.Err != nil {
		return nil, res.Err
	}

	transcript, ok := res.Val.(*domain.Transcript)
	if !ok {
		return nil, fmt.Errorf("unexpected shared transcription result: %T", res.Val)
	}
	copied := *transcript
	return &copied, nil
}

// sharedContext detaches the upstream call from the caller that happened to start it.
// Without a configured timeout the caller's remaining deadline is used as the bound.
func (c *CachedTranscriber) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	timeout := c.callTimeout
	if timeout <= 0 {
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
	}
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}

func encodeTranscript(t *domain.Transcript) (string, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(t); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

func decodeTranscript(data string) (*domain.Transcript, error) {
	var t domain.Transcript
	if err := gob.NewDecoder(bytes.NewReader([]byte(data))).Decode(&t); err != nil {
		return nil, err
	}
	if t.Text == "" {
		return nil, errors.New("cached transcript is empty")
	}
	return &t, nil
}
