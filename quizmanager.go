package quizbuilder

import (
	"fmt"

	"github.com/samber/lo"
)

// QuizManager holds a question bank and a cursor into it. The cursor
// always stays within the bank.
type QuizManager struct {
	questions []Question
	index     int
}

func NewQuizManager(questions []Question) *QuizManager {
	return &QuizManager{questions: questions}
}

// GetQuestionAtIndex returns the question at position i
func (qm *QuizManager) GetQuestionAtIndex(i int) (Question, error) {
	if i < 0 || i >= len(qm.questions) {
		return Question{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(qm.questions))
	}
	return qm.questions[i], nil
}

// NextQuestionIndex moves the cursor by direction and returns the new index.
// Moving past either end leaves the cursor at that end.
func (qm *QuizManager) NextQuestionIndex(direction int) int {
	if len(qm.questions) == 0 {
		return 0
	}
	qm.index = lo.Clamp(qm.index+direction, 0, len(qm.questions)-1)
	return qm.index
}

func (qm *QuizManager) Index() int {
	return qm.index
}

func (qm *QuizManager) TotalQuestions() int {
	return len(qm.questions)
}

// CurrentQuestion returns the question under the cursor
func (qm *QuizManager) CurrentQuestion() (Question, error) {
	return qm.GetQuestionAtIndex(qm.index)
}

func (qm *QuizManager) IsFirst() bool {
	return qm.index == 0
}

func (qm *QuizManager) IsLast() bool {
	return len(qm.questions) == 0 || qm.index == len(qm.questions)-1
}

func (qm *QuizManager) SetIndex(i int) error {
	if i < 0 || i >= len(qm.questions) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(qm.questions))
	}
	qm.index = i
	return nil
}
