package quizbuilder

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Mode is what the user is currently looking at
type Mode string

const (
	ModeBuilder Mode = "builder"
	ModeQuiz    Mode = "quiz"
	ModeResults Mode = "results"
)

// AnswerResult is the feedback for a submitted answer
type AnswerResult struct {
	Correct         bool   `json:"correct"`
	Chosen          string `json:"chosen"`
	CorrectKey      string `json:"correct_key"`
	Explanation     string `json:"explanation"`
	AlreadyAnswered bool   `json:"already_answered"`
}

// QuizSession is the state of one user's quiz. It is safe for concurrent use.
type QuizSession struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	mode     Mode
	topic    string
	quizID   string
	manager  *QuizManager
	score    int
	answers  map[int]string // question index -> first chosen key
	feedback *AnswerResult
	store    *VectorStore
	lastUsed time.Time
}

func NewQuizSession(id string) *QuizSession {
	now := time.Now()
	return &QuizSession{
		ID:        id,
		CreatedAt: now,
		lastUsed:  now,
		mode:      ModeBuilder,
		manager:   NewQuizManager(nil),
		answers:   make(map[int]string),
	}
}

// Start begins a quiz over the questions of quiz
func (s *QuizSession) Start(quiz *Quiz) error {
	if quiz == nil || len(quiz.Questions) == 0 {
		return ErrNoQuestions
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topic = quiz.Topic
	s.quizID = quiz.ID
	s.manager = NewQuizManager(quiz.Questions)
	s.resetProgress()
	s.mode = ModeQuiz
	return nil
}

// AttachStore keeps the vector store built for this session so End can drop it
func (s *QuizSession) AttachStore(vs *VectorStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil && s.store != vs {
		s.store.Reset()
	}
	s.store = vs
}

// SubmitAnswer grades key against the current question. Only the first
// answer to a question counts towards the score.
func (s *QuizSession) SubmitAnswer(key string) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeQuiz {
		return AnswerResult{}, ErrQuizNotActive
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return AnswerResult{}, ErrNoAnswer
	}

	q, err := s.manager.CurrentQuestion()
	if err != nil {
		return AnswerResult{}, err
	}
	if _, ok := q.ChoiceValue(key); !ok {
		return AnswerResult{}, fmt.Errorf("%w: %q is not one of the choices", ErrNoAnswer, key)
	}

	result := AnswerResult{
		Correct:     strings.EqualFold(key, strings.TrimSpace(q.Answer)),
		Chosen:      key,
		CorrectKey:  q.Answer,
		Explanation: q.Explanation,
	}

	idx := s.manager.Index()
	if _, answered := s.answers[idx]; answered {
		result.AlreadyAnswered = true
	} else {
		s.answers[idx] = key
		if result.Correct {
			s.score++
		}
	}

	s.feedback = &result
	return result, nil
}

// Next moves to the following question
func (s *QuizSession) Next() error {
	return s.move(1)
}

// Previous moves to the preceding question
func (s *QuizSession) Previous() error {
	return s.move(-1)
}

func (s *QuizSession) move(direction int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeQuiz {
		return ErrQuizNotActive
	}
	s.manager.NextQuestionIndex(direction)
	s.feedback = nil
	return nil
}

// Finish shows the results
func (s *QuizSession) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeQuiz {
		return ErrQuizNotActive
	}
	s.mode = ModeResults
	s.feedback = nil
	return nil
}

// Restart replays the same bank from the first question
func (s *QuizSession) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manager.TotalQuestions() == 0 {
		return ErrQuizNotActive
	}
	s.resetProgress()
	s.mode = ModeQuiz
	return nil
}

// End drops the bank and the vector store and returns to the builder
func (s *QuizSession) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		s.store.Reset()
		s.store = nil
	}
	s.manager = NewQuizManager(nil)
	s.topic = ""
	s.quizID = ""
	s.resetProgress()
	s.mode = ModeBuilder
}

func (s *QuizSession) resetProgress() {
	_ = s.manager.SetIndex(0)
	s.score = 0
	s.answers = make(map[int]string)
	s.feedback = nil
}

func (s *QuizSession) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *QuizSession) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// LastUsed is when the session was last looked up in its store
func (s *QuizSession) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *QuizSession) touch(t time.Time) {
	s.mu.Lock()
	s.lastUsed = t
	s.mu.Unlock()
}

// ChoiceView is a choice formatted for display
type ChoiceView struct {
	Key      string
	Label    string // "A) text"
	Selected bool
}

// View is a snapshot of the session for rendering
type View struct {
	Mode         Mode
	Topic        string
	QuizID       string
	Number       int // 1-based
	Total        int
	Question     string
	Choices      []ChoiceView
	ShowPrevious bool
	ShowNext     bool
	ShowFinish   bool
	Score        int
	Answered     int
	Feedback     *AnswerResult
}

// View returns what the current question screen or results screen shows
func (s *QuizSession) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Mode:     s.mode,
		Topic:    s.topic,
		QuizID:   s.quizID,
		Total:    s.manager.TotalQuestions(),
		Score:    s.score,
		Answered: len(s.answers),
		Feedback: s.feedback,
	}
	if s.mode != ModeQuiz {
		return v
	}

	q, err := s.manager.CurrentQuestion()
	if err != nil {
		return v
	}
	idx := s.manager.Index()
	chosen := s.answers[idx]

	v.Number = idx + 1
	v.Question = q.Question
	for _, c := range q.Choices {
		v.Choices = append(v.Choices, ChoiceView{
			Key:      c.Key,
			Label:    fmt.Sprintf("%s) %s", c.Key, c.Value),
			Selected: c.Key == chosen,
		})
	}
	v.ShowPrevious = !s.manager.IsFirst()
	v.ShowNext = !s.manager.IsLast()
	v.ShowFinish = s.manager.IsLast()
	return v
}

// SessionStore holds the quiz sessions of this process. Sessions idle for
// longer than maxIdle are ended and dropped; zero keeps them forever.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*QuizSession
	maxIdle  time.Duration
	now      func() time.Time
}

func NewSessionStore(maxIdle time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*QuizSession),
		maxIdle:  maxIdle,
		now:      time.Now,
	}
}

// Create adds a session with a fresh id, evicting idle sessions first
func (ss *SessionStore) Create() *QuizSession {
	ss.Evict()

	s := NewQuizSession(uuid.NewString())
	s.touch(ss.now())

	ss.mu.Lock()
	ss.sessions[s.ID] = s
	ss.mu.Unlock()
	return s
}

// Get looks up a session by id and marks it as used. An idle session is
// evicted and reported as missing.
func (ss *SessionStore) Get(id string) (*QuizSession, bool) {
	ss.mu.RLock()
	s, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := ss.now()
	if ss.expired(s, now) {
		ss.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Evict ends and removes every idle session and returns how many went
func (ss *SessionStore) Evict() int {
	if ss.maxIdle <= 0 {
		return 0
	}
	now := ss.now()

	ss.mu.Lock()
	var idle []*QuizSession
	for id, s := range ss.sessions {
		if ss.expired(s, now) {
			idle = append(idle, s)
			delete(ss.sessions, id)
		}
	}
	ss.mu.Unlock()

	for _, s := range idle {
		s.End()
	}
	if len(idle) > 0 {
		log.Debug().Int("evicted", len(idle)).Msg("Evicted idle quiz sessions")
	}
	return len(idle)
}

func (ss *SessionStore) expired(s *QuizSession, now time.Time) bool {
	return ss.maxIdle > 0 && now.Sub(s.LastUsed()) > ss.maxIdle
}

// Delete ends and removes a session
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	s, ok := ss.sessions[id]
	delete(ss.sessions, id)
	ss.mu.Unlock()

	if ok {
		s.End()
	}
}

// Size returns the number of live sessions
func (ss *SessionStore) Size() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}
