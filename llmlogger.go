package quizbuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LLMLogger writes a per-quiz transcript of every model interaction
type LLMLogger struct {
	file   *os.File
	path   string
	log    zerolog.Logger
	mu     sync.Mutex
	quizID string
}

// NewLLMLogger creates <dir>/<quizID>.log and writes the request header
func NewLLMLogger(dir, quizID string, req GenerationRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", quizID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:   file,
		path:   filename,
		log:    zerolog.New(file).With().Timestamp().Str("quiz_id", quizID).Logger(),
		quizID: quizID,
	}

	logger.log.Info().
		Str("topic", req.Topic).
		Int("num_questions", req.NumQuestions).
		Str("difficulty", req.Difficulty).
		Time("started", time.Now()).
		Msg("quiz generation started")

	return logger, nil
}

// Path returns the transcript file name
func (ll *LLMLogger) Path() string {
	return ll.path
}

// LogLLMRequest logs an LLM request
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.log.Info().Str("module", module).Str("prompt", prompt).Msg("llm request")
}

// LogLLMResponse logs an LLM response
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.log.Info().Str("module", module).Str("response", response).Msg("llm response")
}

// LogQuestionResult logs what the checker decided for a question
func (ll *LLMLogger) LogQuestionResult(question string, action ValidationAction, reason string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.log.Info().Str("question", question).Str("action", string(action)).Str("reason", reason).Msg("question checked")
}

// LogDedupResult logs the result of deduplication
func (ll *LLMLogger) LogDedupResult(question string, result DedupResult) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.log.Info().
		Str("question", question).
		Bool("duplicate", result.IsDuplicate).
		Str("reason", result.Reason).
		Int("duplicate_of", result.DuplicateOf).
		Msg("dedup checked")
}

// Close writes the footer and closes the file
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.log.Info().Time("completed", time.Now()).Msg("quiz generation complete")
	err := ll.file.Close()
	ll.file = nil
	return err
}
