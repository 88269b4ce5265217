package quizbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	MinQuestions = 1
	MaxQuestions = 10
)

type GeneratorConfig struct {
	ContextChunks int // chunks retrieved per quiz, default 4
	MaxAttempts   int // model calls allowed per requested question, default 10
}

// QuizGenerator orchestrates retrieval, generation and validation of quiz questions
type QuizGenerator struct {
	retriever Retriever
	maker     QuestionMaker
	checker   *QuestionChecker
	dedup     *QuestionDedup
	config    GeneratorConfig
	logger    *LLMLogger
}

// NewQuizGenerator creates a new quiz generator
func NewQuizGenerator(retriever Retriever, maker QuestionMaker, config GeneratorConfig) *QuizGenerator {
	if config.ContextChunks <= 0 {
		config.ContextChunks = 4
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 10
	}
	return &QuizGenerator{
		retriever: retriever,
		maker:     maker,
		checker:   NewQuestionChecker(),
		dedup:     NewQuestionDedup(),
		config:    config,
	}
}

// SetLogger attaches a per-quiz transcript to the generator and its checkers
func (qg *QuizGenerator) SetLogger(logger *LLMLogger) {
	qg.logger = logger
	qg.checker.SetLogger(logger)
	qg.dedup.SetLogger(logger)
}

// GenerateQuiz generates a quiz with up to req.NumQuestions unique questions
func (qg *QuizGenerator) GenerateQuiz(ctx context.Context, req GenerationRequest) (*Quiz, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Topic = strings.TrimSpace(req.Topic)

	log.Info().Str("topic", req.Topic).Int("questions", req.NumQuestions).Msg("Starting quiz generation")

	matches, err := qg.retriever.Query(ctx, req.Topic, qg.config.ContextChunks)
	if err != nil {
		return nil, err
	}
	req.Context = strings.Join(lo.Map(matches, func(m Match, _ int) string { return m.Content }), "\n\n")
	VerboseLog("Retrieved %d context chunks for %q", len(matches), req.Topic)

	qg.dedup.Reset()
	accepted := make([]Question, 0, req.NumQuestions)
	maxAttempts := qg.config.MaxAttempts * req.NumQuestions
	attempts := 0
	rejected := 0

	for len(accepted) < req.NumQuestions && attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		question, err := qg.maker.MakeQuestion(ctx, req, qg.logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("attempt", attempts).Msg("Question generation failed")
			continue
		}

		validation := qg.checker.CheckQuestion(question)
		switch validation.Action {
		case ActionReject:
			rejected++
			continue
		case ActionRevise:
			question = validation.RevisedQuestion
		}

		if dup := qg.dedup.CheckDuplicate(question); dup.IsDuplicate {
			rejected++
			continue
		}
		accepted = append(accepted, *question)
		log.Info().Int("accepted", len(accepted)).Int("target", req.NumQuestions).Msg("Question accepted")
	}

	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w after %d attempts", ErrNoQuestions, attempts)
	}
	if len(accepted) < req.NumQuestions {
		log.Warn().
			Int("accepted", len(accepted)).
			Int("requested", req.NumQuestions).
			Int("attempts", attempts).
			Msg("Out of attempts, returning a shorter quiz")
	}

	if req.QuizID == "" {
		req.QuizID = uuid.NewString()
	}
	quiz := &Quiz{
		ID:        req.QuizID,
		Topic:     req.Topic,
		Questions: accepted,
		Sources:   lo.Uniq(lo.Map(matches, func(m Match, _ int) string { return m.Source })),
		CreatedAt: time.Now(),
	}

	log.Info().
		Str("quiz_id", quiz.ID).
		Int("questions", len(quiz.Questions)).
		Int("attempts", attempts).
		Int("rejected", rejected).
		Msg("Quiz generation complete")
	return quiz, nil
}
