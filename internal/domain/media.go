package domain

import (
	"context"
	"os"
	"sync"
	"time"
)

// AudioFile is a normalised audio file in the scratch area, owned by one pipeline run.
type AudioFile struct {
	Path    string
	VideoID string
	// SourceURL is the canonical watch url, whatever link form the caller used.
	SourceURL string
	Title     string
	Duration  time.Duration

	releaseOnce sync.Once
}

// Release removes the file from disk. Safe to call more than once.
func (a *AudioFile) Release() error {
	if a == nil {
		return nil
	}
	var err error
	a.releaseOnce.Do(func() {
		if a.Path == "" {
			return
		}
		if removeErr := os.Remove(a.Path); removeErr != nil && !os.IsNotExist(removeErr) {
			err = removeErr
		}
	})
	return err
}

// MediaFetcher turns a video URL into a local audio file.
type MediaFetcher interface {
	Fetch(ctx context.Context, videoURL string) (*AudioFile, error)
}
