package quizbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionMaker asks a generative model for a single question record
type QuestionMaker interface {
	MakeQuestion(ctx context.Context, req GenerationRequest, logger *LLMLogger) (*Question, error)
}

// NewQuestionMaker builds the maker for cfg.Provider
func NewQuestionMaker(ctx context.Context, cfg *Config) (QuestionMaker, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIMaker(cfg.OpenAIKey, cfg.Generation), nil
	case ProviderVertex:
		return NewGeminiMaker(ctx, cfg.ProjectID, cfg.Location, cfg.Generation)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

const systemPrompt = "You are an expert quiz question generator. Generate one high-quality multiple choice question grounded in the supplied context."

func buildPrompt(req GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a subject matter expert on the topic: %s\n\n", req.Topic))
	sb.WriteString("Follow the instructions to create a quiz question:\n")
	sb.WriteString("1. Generate a question based on the topic provided and context as key \"question\"\n")
	sb.WriteString("2. Provide 4 multiple choice answers to the question as a list of key-value pairs \"choices\", using the keys A, B, C and D\n")
	sb.WriteString("3. Provide the key of the correct answer as key \"answer\"\n")
	sb.WriteString("4. Explain why the answer is correct as key \"explanation\"\n\n")

	if req.Difficulty != "" {
		sb.WriteString(fmt.Sprintf("Difficulty level: %s\n\n", req.Difficulty))
	}

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n")
	sb.WriteString("- Avoid questions where the answer is given away in the question text\n")
	sb.WriteString("- Only ask about facts found in the context\n\n")

	sb.WriteString("You must respond as a JSON object with the following structure:\n")
	sb.WriteString(`{
    "question": "<question>",
    "choices": [
        {"key": "A", "value": "<choice>"},
        {"key": "B", "value": "<choice>"},
        {"key": "C", "value": "<choice>"},
        {"key": "D", "value": "<choice>"}
    ],
    "answer": "<answer key from choices list>",
    "explanation": "<explanation as to why the answer is correct>"
}`)
	sb.WriteString("\n\nContext: ")
	sb.WriteString(req.Context)
	sb.WriteString("\n")

	return sb.String()
}

// ParseQuestionJSON decodes a question record, tolerating a Markdown code
// fence or stray prose around the JSON object.
func ParseQuestionJSON(raw string) (*Question, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var q Question
	if err := json.Unmarshal([]byte(text[start:end+1]), &q); err != nil {
		return nil, fmt.Errorf("failed to parse question JSON: %w", err)
	}
	return &q, nil
}
