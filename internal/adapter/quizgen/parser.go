package quizgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"quiztube/internal/domain"
)

type wireQuiz struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	QuestionTitle   string   `json:"question_title"`
	QuestionOptions []string `json:"question_options"`
	CorrectIndex    *int     `json:"correct_index,omitempty"`
	Answer          *string  `json:"answer,omitempty"`
}

// ExtractJSON strips reasoning blocks and markdown fences and returns the outermost JSON object.
func ExtractJSON(raw string) (string, error) {
	cleaned := raw
	for {
		start := strings.Index(cleaned, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(cleaned, "</think>")
		if end == -1 || end < start {
			cleaned = cleaned[:start]
			break
		}
		cleaned = cleaned[:start] + cleaned[end+len("</think>"):]
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd < jsonStart {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return cleaned[jsonStart : jsonEnd+1], nil
}

// ParseGeneratedQuiz decodes and validates model output. Malformed output is never repaired.
func ParseGeneratedQuiz(raw string) (*domain.GeneratedQuiz, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, domain.NewQuizGenerationError("model output is not JSON", err)
	}

	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.DisallowUnknownFields()
	var wire wireQuiz
	if err := decoder.Decode(&wire); err != nil {
		return nil, domain.NewQuizGenerationError("model output does not match the quiz schema", err)
	}

	quiz := &domain.GeneratedQuiz{
		Title:       strings.TrimSpace(wire.Title),
		Description: strings.TrimSpace(wire.Description),
		Questions:   make([]domain.GeneratedQuestion, 0, len(wire.Questions)),
	}
	for i, q := range wire.Questions {
		options := make([]string, len(q.QuestionOptions))
		for j, option := range q.QuestionOptions {
			options[j] = strings.TrimSpace(option)
		}
		correct, err := resolveCorrectIndex(q, options)
		if err != nil {
			return nil, domain.NewQuizGenerationError(fmt.Sprintf("question %d: %v", i+1, err), err)
		}
		quiz.Questions = append(quiz.Questions, domain.GeneratedQuestion{
			Text:         strings.TrimSpace(q.QuestionTitle),
			Options:      options,
			CorrectIndex: correct,
		})
	}

	if err := Validate(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// resolveCorrectIndex accepts correct_index, or an answer text that matches exactly one option.
func resolveCorrectIndex(q wireQuestion, options []string) (int, error) {
	answerIndex := -1
	if q.Answer != nil {
		answer := strings.TrimSpace(*q.Answer)
		matches := 0
		for j, option := range options {
			if strings.EqualFold(option, answer) {
				answerIndex = j
				matches++
			}
		}
		if matches != 1 {
			return -1, fmt.Errorf("answer %q matches %d options", answer, matches)
		}
	}

	switch {
	case q.CorrectIndex != nil && q.Answer != nil && *q.CorrectIndex != answerIndex:
		return -1, fmt.Errorf("correct_index %d disagrees with answer", *q.CorrectIndex)
	case q.CorrectIndex != nil:
		return *q.CorrectIndex, nil
	case q.Answer != nil:
		return answerIndex, nil
	}
	return -1, fmt.Errorf("no correct answer given")
}

// Validate enforces the 10 questions, 4 distinct options, 1 correct answer contract.
func Validate(quiz *domain.GeneratedQuiz) error {
	if quiz.Title == "" {
		return domain.NewQuizGenerationError("generated quiz has no title", nil)
	}
	if quiz.Description == "" {
		return domain.NewQuizGenerationError("generated quiz has no description", nil)
	}
	if len(quiz.Questions) != domain.QuestionsPerQuiz {
		return domain.NewQuizGenerationError(
			fmt.Sprintf("generated quiz has %d questions, want %d", len(quiz.Questions), domain.QuestionsPerQuiz), nil,
		).WithContext("question_count", len(quiz.Questions))
	}

	for i, q := range quiz.Questions {
		if q.Text == "" {
			return domain.NewQuizGenerationError(fmt.Sprintf("question %d has no text", i+1), nil)
		}
		if len(q.Options) != domain.AnswersPerQuestion {
			return domain.NewQuizGenerationError(
				fmt.Sprintf("question %d has %d options, want %d", i+1, len(q.Options), domain.AnswersPerQuestion), nil)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, option := range q.Options {
			if option == "" {
				return domain.NewQuizGenerationError(fmt.Sprintf("question %d has an empty option", i+1), nil)
			}
			key := strings.ToLower(option)
			if _, dup := seen[key]; dup {
				return domain.NewQuizGenerationError(fmt.Sprintf("question %d repeats option %q", i+1, option), nil)
			}
			seen[key] = struct{}{}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= domain.AnswersPerQuestion {
			return domain.NewQuizGenerationError(
				fmt.Sprintf("question %d has correct index %d", i+1, q.CorrectIndex), nil)
		}
	}
	return nil
}

// EncodeGeneratedQuiz renders a quiz in the same JSON shape the model is asked to produce.
func EncodeGeneratedQuiz(quiz *domain.GeneratedQuiz) ([]byte, error) {
	wire := wireQuiz{
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   make([]wireQuestion, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		correct := q.CorrectIndex
		wire.Questions = append(wire.Questions, wireQuestion{
			QuestionTitle:   q.Text,
			QuestionOptions: append([]string(nil), q.Options...),
			CorrectIndex:    &correct,
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(wire); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
