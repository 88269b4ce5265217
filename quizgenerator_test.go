package quizbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	matches []Match
	err     error
	calls   int
	lastN   int
}

func (r *fakeRetriever) Query(_ context.Context, _ string, n int) ([]Match, error) {
	r.calls++
	r.lastN = n
	return r.matches, r.err
}

// fakeMaker replays a fixed script of questions and errors, then repeats
// the final entry
type fakeMaker struct {
	script   []func(req GenerationRequest) (*Question, error)
	calls    int
	requests []GenerationRequest
}

func (m *fakeMaker) MakeQuestion(_ context.Context, req GenerationRequest, _ *LLMLogger) (*Question, error) {
	m.requests = append(m.requests, req)
	step := m.script[min(m.calls, len(m.script)-1)]
	m.calls++
	return step(req)
}

func returns(q Question) func(GenerationRequest) (*Question, error) {
	return func(GenerationRequest) (*Question, error) {
		dup := q
		return &dup, nil
	}
}

func fails(err error) func(GenerationRequest) (*Question, error) {
	return func(GenerationRequest) (*Question, error) {
		return nil, err
	}
}

func validQuestion(text string) Question {
	return Question{
		Question:    text,
		Choices:     []Choice{{Key: "A", Value: "one"}, {Key: "B", Value: "two"}, {Key: "C", Value: "three"}, {Key: "D", Value: "four"}},
		Answer:      "B",
		Explanation: "two is right",
	}
}

func defaultRetriever() *fakeRetriever {
	return &fakeRetriever{matches: []Match{
		{Content: "Chlorophyll absorbs light.", Source: "bio.pdf", Page: 1, Similarity: 0.9},
		{Content: "Plants release oxygen.", Source: "bio.pdf", Page: 2, Similarity: 0.8},
		{Content: "Leaves are green.", Source: "plants.pdf", Page: 7, Similarity: 0.7},
	}}
}

func TestGenerateQuizRejectsInvalidRequests(t *testing.T) {
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(validQuestion("Q?"))}}
	retriever := defaultRetriever()
	gen := NewQuizGenerator(retriever, maker, GeneratorConfig{})

	for _, req := range []GenerationRequest{
		{Topic: "Photosynthesis", NumQuestions: 0},
		{Topic: "Photosynthesis", NumQuestions: 11},
		{Topic: "Photosynthesis", NumQuestions: -2},
		{Topic: "   ", NumQuestions: 3},
	} {
		_, err := gen.GenerateQuiz(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %+v", req)
	}
	assert.Equal(t, 0, retriever.calls)
	assert.Equal(t, 0, maker.calls)
}

func TestGenerateQuizSurfacesRetrievalErrors(t *testing.T) {
	for _, want := range []error{ErrStoreNotCreated, ErrNoMatchingChunks} {
		maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(validQuestion("Q?"))}}
		gen := NewQuizGenerator(&fakeRetriever{err: want}, maker, GeneratorConfig{})

		_, err := gen.GenerateQuiz(context.Background(), GenerationRequest{Topic: "x", NumQuestions: 1})
		assert.ErrorIs(t, err, want)
		assert.Equal(t, 0, maker.calls)
	}
}

func TestGenerateQuiz(t *testing.T) {
	var script []func(GenerationRequest) (*Question, error)
	for i := 1; i <= 3; i++ {
		script = append(script, returns(validQuestion(fmt.Sprintf("Question %d?", i))))
	}
	maker := &fakeMaker{script: script}
	retriever := defaultRetriever()
	gen := NewQuizGenerator(retriever, maker, GeneratorConfig{ContextChunks: 2})

	quiz, err := gen.GenerateQuiz(context.Background(), GenerationRequest{
		Topic:        " Photosynthesis ",
		NumQuestions: 3,
		Difficulty:   "easy",
		QuizID:       "fixed-id",
	})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", quiz.ID)
	assert.Equal(t, "Photosynthesis", quiz.Topic)
	require.Len(t, quiz.Questions, 3)
	assert.Equal(t, "Question 1?", quiz.Questions[0].Question)
	assert.Equal(t, []string{"bio.pdf", "plants.pdf"}, quiz.Sources)
	assert.False(t, quiz.CreatedAt.IsZero())

	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, 2, retriever.lastN)
	assert.Equal(t, 3, maker.calls)
	req := maker.requests[0]
	assert.Contains(t, req.Context, "Chlorophyll absorbs light.")
	assert.Contains(t, req.Context, "Plants release oxygen.")
	assert.Equal(t, "easy", req.Difficulty)
}

func TestGenerateQuizDeduplicatesAndStopsAfterMaxAttempts(t *testing.T) {
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){
		returns(validQuestion("What is chlorophyll?")),
		returns(validQuestion("  what IS   chlorophyll?")),
	}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{MaxAttempts: 2})

	quiz, err := gen.GenerateQuiz(context.Background(), GenerationRequest{Topic: "Plants", NumQuestions: 3})
	require.NoError(t, err)

	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, 6, maker.calls)
}

func TestGenerateQuizNoQuestions(t *testing.T) {
	broken := validQuestion("Broken?")
	broken.Answer = "Z"
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(broken)}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{MaxAttempts: 3})

	_, err := gen.GenerateQuiz(context.Background(), GenerationRequest{Topic: "Plants", NumQuestions: 2})
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Equal(t, 6, maker.calls)
}

func TestGenerateQuizMakerErrorsCountAsAttempts(t *testing.T) {
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){
		fails(errors.New("model overloaded")),
		fails(errors.New("model overloaded")),
		returns(validQuestion("Does it recover?")),
	}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{MaxAttempts: 3})

	quiz, err := gen.GenerateQuiz(context.Background(), GenerationRequest{Topic: "Plants", NumQuestions: 1})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, 3, maker.calls)
}

func TestGenerateQuizUsesRevisedQuestion(t *testing.T) {
	q := validQuestion("  Which is right?  ")
	q.Choices[1].Key = "b)"
	q.Answer = "two"
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(q)}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{})

	quiz, err := gen.GenerateQuiz(context.Background(), GenerationRequest{Topic: "Plants", NumQuestions: 1})
	require.NoError(t, err)

	got := quiz.Questions[0]
	assert.Equal(t, "Which is right?", got.Question)
	assert.Equal(t, "B", got.Choices[1].Key)
	assert.Equal(t, "B", got.Answer)
}

func TestGenerateQuizCancelled(t *testing.T) {
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(validQuestion("Q?"))}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.GenerateQuiz(ctx, GenerationRequest{Topic: "Plants", NumQuestions: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, maker.calls)
}

func TestGenerateQuizWritesTranscript(t *testing.T) {
	maker := &fakeMaker{script: []func(GenerationRequest) (*Question, error){returns(validQuestion("Logged?"))}}
	gen := NewQuizGenerator(defaultRetriever(), maker, GeneratorConfig{})

	dir := t.TempDir()
	req := GenerationRequest{Topic: "Plants", NumQuestions: 1, QuizID: "transcript"}
	logger, err := NewLLMLogger(dir, req.QuizID, req)
	require.NoError(t, err)
	gen.SetLogger(logger)

	_, err = gen.GenerateQuiz(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	data := readFile(t, logger.Path())
	assert.True(t, strings.Contains(data, "question checked"))
	assert.True(t, strings.Contains(data, "dedup checked"))
}
