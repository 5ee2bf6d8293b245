package domain

import "context"

// GeneratedQuestion is one question as returned by the language model.
type GeneratedQuestion struct {
	Text         string
	Options      []string
	CorrectIndex int
}

// GeneratedQuiz is validated model output, not yet persisted.
type GeneratedQuiz struct {
	Title       string
	Description string
	Questions   []GeneratedQuestion
}

// QuizSynthesizer produces a quiz from a transcript.
type QuizSynthesizer interface {
	Synthesize(ctx context.Context, transcript string, locale string) (*GeneratedQuiz, error)
}

// LLMClient sends one prompt and returns the raw completion text.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
