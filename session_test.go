package quizbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedSession(t *testing.T, n int) *QuizSession {
	t.Helper()
	s := NewQuizSession("test")
	require.NoError(t, s.Start(&Quiz{ID: "quiz-1", Topic: "Biology", Questions: makeBank(n)}))
	return s
}

func TestSessionStartRequiresQuestions(t *testing.T) {
	s := NewQuizSession("test")
	assert.ErrorIs(t, s.Start(nil), ErrNoQuestions)
	assert.ErrorIs(t, s.Start(&Quiz{}), ErrNoQuestions)
	assert.Equal(t, ModeBuilder, s.Mode())

	_, err := s.SubmitAnswer("A")
	assert.ErrorIs(t, err, ErrQuizNotActive)
	assert.ErrorIs(t, s.Next(), ErrQuizNotActive)
	assert.ErrorIs(t, s.Finish(), ErrQuizNotActive)
	assert.ErrorIs(t, s.Restart(), ErrQuizNotActive)
}

func TestSubmitAnswerScoresOnce(t *testing.T) {
	s := startedSession(t, 3)

	res, err := s.SubmitAnswer("a")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.AlreadyAnswered)
	assert.Equal(t, "A", res.CorrectKey)
	assert.Equal(t, "because", res.Explanation)
	assert.Equal(t, 1, s.Score())

	res, err = s.SubmitAnswer(" A ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.AlreadyAnswered)
	assert.Equal(t, 1, s.Score())

	require.NoError(t, s.Next())
	res, err = s.SubmitAnswer("B")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 1, s.Score())

	// a correct answer after a wrong one does not count
	res, err = s.SubmitAnswer("A")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.AlreadyAnswered)
	assert.Equal(t, 1, s.Score())

	v := s.View()
	assert.Equal(t, 2, v.Answered)
	assert.LessOrEqual(t, v.Score, v.Answered)
}

func TestSubmitAnswerRejectsMissingKey(t *testing.T) {
	s := startedSession(t, 1)

	_, err := s.SubmitAnswer("")
	assert.ErrorIs(t, err, ErrNoAnswer)
	// a key that is not one of the choices is not an answer either
	_, err = s.SubmitAnswer("Z")
	assert.ErrorIs(t, err, ErrNoAnswer)
	assert.Equal(t, 0, s.View().Answered)
	assert.Equal(t, 0, s.Score())
	assert.Nil(t, s.View().Feedback)

	res, err := s.SubmitAnswer("a")
	require.NoError(t, err)
	assert.True(t, res.Correct)
}

func TestSessionViewNavigation(t *testing.T) {
	s := startedSession(t, 3)

	v := s.View()
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, "Biology", v.Topic)
	assert.False(t, v.ShowPrevious)
	assert.True(t, v.ShowNext)
	assert.False(t, v.ShowFinish)
	require.Len(t, v.Choices, 2)
	assert.Equal(t, "A) x", v.Choices[0].Label)

	require.NoError(t, s.Next())
	v = s.View()
	assert.Equal(t, 2, v.Number)
	assert.True(t, v.ShowPrevious)
	assert.True(t, v.ShowNext)
	assert.False(t, v.ShowFinish)

	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	v = s.View()
	assert.Equal(t, 3, v.Number)
	assert.True(t, v.ShowPrevious)
	assert.False(t, v.ShowNext)
	assert.True(t, v.ShowFinish)

	require.NoError(t, s.Previous())
	assert.Equal(t, 2, s.View().Number)
}

func TestSessionFeedbackClearedOnMove(t *testing.T) {
	s := startedSession(t, 2)

	_, err := s.SubmitAnswer("B")
	require.NoError(t, err)
	v := s.View()
	require.NotNil(t, v.Feedback)
	assert.True(t, v.Choices[1].Selected)

	require.NoError(t, s.Next())
	assert.Nil(t, s.View().Feedback)

	require.NoError(t, s.Previous())
	v = s.View()
	assert.Nil(t, v.Feedback)
	assert.True(t, v.Choices[1].Selected)
}

func TestSessionFinishRestartEnd(t *testing.T) {
	s := startedSession(t, 2)

	_, err := s.SubmitAnswer("A")
	require.NoError(t, err)
	require.NoError(t, s.Next())
	require.NoError(t, s.Finish())

	assert.Equal(t, ModeResults, s.Mode())
	v := s.View()
	assert.Equal(t, 1, v.Score)
	assert.Equal(t, 2, v.Total)
	_, err = s.SubmitAnswer("A")
	assert.ErrorIs(t, err, ErrQuizNotActive)

	require.NoError(t, s.Restart())
	v = s.View()
	assert.Equal(t, ModeQuiz, v.Mode)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, 0, v.Answered)
	assert.Equal(t, 2, v.Total)

	s.End()
	v = s.View()
	assert.Equal(t, ModeBuilder, v.Mode)
	assert.Equal(t, 0, v.Total)
	assert.Empty(t, v.Topic)
	assert.ErrorIs(t, s.Restart(), ErrQuizNotActive)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(0)

	a := store.Create()
	b := store.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, store.Size())

	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	store.Delete(a.ID)
	_, ok = store.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Size())

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestSessionStoreEvictsIdleSessions(t *testing.T) {
	now := time.Now()
	store := NewSessionStore(time.Hour)
	store.now = func() time.Time { return now }

	idle := store.Create()
	require.NoError(t, idle.Start(&Quiz{ID: "q", Topic: "Cells", Questions: makeBank(2)}))
	busy := store.Create()

	now = now.Add(45 * time.Minute)
	_, ok := store.Get(busy.ID)
	require.True(t, ok)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, store.Evict())
	assert.Equal(t, 1, store.Size())
	assert.Equal(t, ModeBuilder, idle.Mode())
	assert.Equal(t, 0, idle.View().Total)

	_, ok = store.Get(idle.ID)
	assert.False(t, ok)
	_, ok = store.Get(busy.ID)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = store.Get(busy.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())

	store.Create()
	now = now.Add(2 * time.Hour)
	store.Create()
	assert.Equal(t, 1, store.Size())
}
