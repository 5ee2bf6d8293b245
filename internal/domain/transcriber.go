package domain

import (
	"context"
	"time"
)

// Transcript is the speech-to-text result for one audio file.
type Transcript struct {
	Text     string
	Language string
	Duration time.Duration
}

// Transcriber converts audio to text. languageHint may be empty.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *AudioFile, languageHint string) (*Transcript, error)
}
