package quizbuilder

import (
	"fmt"
	"strings"
	"time"
)

// PageMetadata identifies where a page of text came from
type PageMetadata struct {
	Source string `json:"source"`
	Page   int    `json:"page"` // 1-based
}

// Page is the text of a single document page
type Page struct {
	Content  string       `json:"page_content"`
	Metadata PageMetadata `json:"metadata"`
}

// Chunk is a bounded substring of a page prepared for embedding
type Chunk struct {
	Text   string
	Source string
	Page   int
	Index  int // position of the chunk within its page
	Start  int // rune offset of Text within the page
}

// Choice is one lettered option of a multiple choice question
type Choice struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Question represents a single quiz question with multiple choice answers
type Question struct {
	Question    string   `json:"question"`
	Choices     []Choice `json:"choices"`
	Answer      string   `json:"answer"` // key of the correct choice
	Explanation string   `json:"explanation"`
}

// ChoiceValue returns the text of the choice with the given key
func (q Question) ChoiceValue(key string) (string, bool) {
	for _, c := range q.Choices {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Quiz represents a complete quiz with metadata
type Quiz struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
	Sources   []string   `json:"sources,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ValidationResult represents the result of checking a question
type ValidationResult struct {
	Action          ValidationAction `json:"action"`
	Reason          string           `json:"reason"`
	RevisedQuestion *Question        `json:"revised_question,omitempty"`
}

// ValidationAction represents what the validator decided to do
type ValidationAction string

const (
	ActionAccept ValidationAction = "accept"
	ActionReject ValidationAction = "reject"
	ActionRevise ValidationAction = "revise"
)

// GenerationRequest represents a request to generate questions
type GenerationRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
	Difficulty   string `json:"difficulty,omitempty"`
	// QuizID names the generated quiz; a new id is assigned when empty
	QuizID string `json:"quiz_id,omitempty"`
	// Context is the retrieved source material handed to the model
	Context string `json:"context,omitempty"`
}

// Validate checks the topic and the question count
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if r.NumQuestions < MinQuestions || r.NumQuestions > MaxQuestions {
		return fmt.Errorf("%w: number of questions must be between %d and %d", ErrInvalidRequest, MinQuestions, MaxQuestions)
	}
	return nil
}

// Match is a chunk returned by a similarity query
type Match struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Similarity float32 `json:"similarity"`
}
