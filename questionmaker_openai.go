package quizbuilder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const submitQuestionTool = "submit_question"

// OpenAIMaker generates questions through a forced tool call
type OpenAIMaker struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIMaker(apiKey string, cfg GenerationConfig) *OpenAIMaker {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIMaker{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxOutputTokens,
	}
}

func (m *OpenAIMaker) MakeQuestion(ctx context.Context, req GenerationRequest, logger *LLMLogger) (*Question, error) {
	prompt := buildPrompt(req)
	if logger != nil {
		logger.LogLLMRequest("OpenAIMaker", prompt)
	}

	resp, err := m.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       m.model,
			Temperature: m.temperature,
			MaxTokens:   m.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
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
						Name:        submitQuestionTool,
						Description: "Submit the generated quiz question",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"question": map[string]interface{}{
									"type":        "string",
									"description": "The question text",
								},
								"choices": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"key": map[string]interface{}{
												"type":        "string",
												"description": "Choice letter: A, B, C or D",
											},
											"value": map[string]interface{}{
												"type":        "string",
												"description": "Choice text",
											},
										},
										"required": []string{"key", "value"},
									},
									"description": "Array of 4 multiple choice options",
								},
								"answer": map[string]interface{}{
									"type":        "string",
									"description": "Key of the correct choice",
								},
								"explanation": map[string]interface{}{
									"type":        "string",
									"description": "Brief explanation of why the answer is correct",
								},
							},
							"required": []string{"question", "choices", "answer", "explanation"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: submitQuestionTool,
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", m.model)
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		// some models ignore tool_choice and answer in plain text
		if choice.Message.Content != "" {
			if logger != nil {
				logger.LogLLMResponse("OpenAIMaker", choice.Message.Content)
			}
			return ParseQuestionJSON(choice.Message.Content)
		}
		return nil, fmt.Errorf("no tool calls in response")
	}

	toolCall := choice.Message.ToolCalls[0]
	if logger != nil {
		logger.LogLLMResponse("OpenAIMaker", toolCall.Function.Arguments)
	}
	if toolCall.Function.Name != submitQuestionTool {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	question, err := ParseQuestionJSON(toolCall.Function.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	log.Debug().Str("model", m.model).Int("tokens", resp.Usage.TotalTokens).Msg("Generated question")
	return question, nil
}
