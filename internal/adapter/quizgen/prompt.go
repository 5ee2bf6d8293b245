package quizgen

import (
	"fmt"
	"strings"

	"quiztube/internal/domain"
)

const submitToolName = "submit_quiz"

// BuildPrompt renders the generation prompt for a transcript. locale may be empty.
func BuildPrompt(transcript, locale string) string {
	var sb strings.Builder

	sb.WriteString("Based on the following transcript, generate a quiz in valid JSON format.\n\n")
	sb.WriteString("The quiz must follow this exact structure:\n\n")
	sb.WriteString(`{
  "title": "A concise quiz title based on the topic of the transcript.",
  "description": "A summary of the transcript in no more than 150 characters, without questions or answers.",
  "questions": [
    {
      "question_title": "The question goes here.",
      "question_options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_index": 0
    }
  ]
}`)
	sb.WriteString("\n\nRequirements:\n")
	sb.WriteString(fmt.Sprintf("- Generate exactly %d questions.\n", domain.QuestionsPerQuiz))
	sb.WriteString(fmt.Sprintf("- Each question must have exactly %d distinct answer options.\n", domain.AnswersPerQuestion))
	sb.WriteString("- Exactly one option is correct; correct_index is its 0-based position in question_options.\n")
	sb.WriteString("- Every question must be answerable from the transcript alone.\n")
	if locale != "" {
		sb.WriteString(fmt.Sprintf("- Write the title, description, questions and options in the language with code %q.\n", locale))
	} else {
		sb.WriteString("- Write the quiz in the language of the transcript.\n")
	}
	sb.WriteString("- The output must be valid JSON and parsable as-is.\n")
	sb.WriteString("- Do not include explanations, comments, or any text outside the JSON.\n")
	sb.WriteString("- Do not wrap the JSON in markdown code blocks.\n\n")
	sb.WriteString("Transcript:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n")

	return sb.String()
}

// retryPrompt asks the model to fix the problem that made the previous answer unusable.
func retryPrompt(base string, reason error) string {
	return base + fmt.Sprintf(
		"\nYour previous answer was rejected: %v. Return the complete quiz again and follow every requirement exactly.\n",
		reason,
	)
}
