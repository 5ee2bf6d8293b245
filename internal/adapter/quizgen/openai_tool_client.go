package quizgen

import (
	"context"
	"fmt"

	"quiztube/internal/config"
	"quiztube/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIToolClient forces the model to answer through a submit_quiz tool call, whose
// arguments are the quiz JSON.
type OpenAIToolClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIToolClient(cfg config.LLMConfig) (*OpenAIToolClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.ServerURL != "" {
		clientCfg.BaseURL = cfg.ServerURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIToolClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *OpenAIToolClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert quiz author. You write multiple choice questions grounded in a video transcript.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        submitToolName,
					Description: "Submit the generated quiz",
					Parameters:  quizToolSchema(),
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: submitToolName},
		},
	})
	if err != nil {
		return "", classifyError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewQuizGenerationError("model returned no choices", nil)
	}
	choice := resp.Choices[0]
	for _, call := range choice.Message.ToolCalls {
		if call.Function.Name == submitToolName {
			return call.Function.Arguments, nil
		}
	}
	// Some compatible servers ignore tool_choice and answer in plain content.
	if choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	return "", domain.NewQuizGenerationError("model did not call "+submitToolName, nil)
}

func quizToolSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"type":        "string",
				"description": "A concise quiz title",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Summary of the transcript in at most 150 characters",
			},
			"questions": map[string]interface{}{
				"type":     "array",
				"minItems": domain.QuestionsPerQuiz,
				"maxItems": domain.QuestionsPerQuiz,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"question_title": map[string]interface{}{
							"type":        "string",
							"description": "The question text",
						},
						"question_options": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"minItems":    domain.AnswersPerQuestion,
							"maxItems":    domain.AnswersPerQuestion,
							"description": "Four distinct answer options",
						},
						"correct_index": map[string]interface{}{
							"type":        "integer",
							"minimum":     0,
							"maximum":     domain.AnswersPerQuestion - 1,
							"description": "0-based index of the correct option",
						},
					},
					"required": []string{"question_title", "question_options", "correct_index"},
				},
			},
		},
		"required": []string{"title", "description", "questions"},
	}
}
