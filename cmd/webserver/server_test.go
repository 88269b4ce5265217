package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"quizbuilder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuiz(n int) *quizbuilder.Quiz {
	quiz := &quizbuilder.Quiz{ID: "quiz-1", Topic: "Photosynthesis", CreatedAt: time.Now()}
	for i := 1; i <= n; i++ {
		quiz.Questions = append(quiz.Questions, quizbuilder.Question{
			Question:    fmt.Sprintf("Question number %d?", i),
			Choices:     []quizbuilder.Choice{{Key: "A", Value: "Chlorophyll"}, {Key: "B", Value: "Keratin"}},
			Answer:      "A",
			Explanation: "Chlorophyll captures light.",
		})
	}
	return quiz
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestClient(t *testing.T, build BuildFunc, archive *quizbuilder.Archive) *testClient {
	t.Helper()
	srv, err := NewServer(Options{
		Build:         build,
		Archive:       archive,
		SessionSecret: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, server: ts, client: &http.Client{Jar: jar}}
}

func (c *testClient) get(path string) (int, string) {
	c.t.Helper()
	resp, err := c.client.Get(c.server.URL + path)
	require.NoError(c.t, err)
	return readResponse(c.t, resp)
}

func (c *testClient) post(path string, form url.Values) (int, string) {
	c.t.Helper()
	resp, err := c.client.PostForm(c.server.URL+path, form)
	require.NoError(c.t, err)
	return readResponse(c.t, resp)
}

func readResponse(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func staticBuild(quiz *quizbuilder.Quiz) BuildFunc {
	return func(_ context.Context, _ []quizbuilder.Upload, req quizbuilder.GenerationRequest) (*quizbuilder.Quiz, *quizbuilder.VectorStore, error) {
		if req.NumQuestions < quizbuilder.MinQuestions || req.NumQuestions > quizbuilder.MaxQuestions {
			return nil, nil, fmt.Errorf("%w: number of questions must be between 1 and 10", quizbuilder.ErrInvalidRequest)
		}
		return quiz, nil, nil
	}
}

func TestQuizFlow(t *testing.T) {
	c := newTestClient(t, staticBuild(testQuiz(2)), nil)

	status, body := c.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Generate Quiz")

	status, body = c.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"2"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Question number 1?")
	assert.Contains(t, body, "A) Chlorophyll")
	assert.Contains(t, body, "Next Question")
	assert.NotContains(t, body, "Previous Question")
	assert.NotContains(t, body, "Finish")

	// the home page sends an active quiz back to its question
	_, body = c.get("/")
	assert.Contains(t, body, "Question number 1?")

	_, body = c.post("/quiz/answer", url.Values{"answer": {"A"}})
	assert.Contains(t, body, "Correct!")
	assert.Contains(t, body, "Chlorophyll captures light.")

	_, body = c.post("/quiz/answer", url.Values{})
	assert.Contains(t, body, "Choose an answer first.")

	_, body = c.post("/quiz/next", nil)
	assert.Contains(t, body, "Question number 2?")
	assert.Contains(t, body, "Previous Question")
	assert.Contains(t, body, "Finish")
	assert.NotContains(t, body, "Next Question")

	_, body = c.post("/quiz/answer", url.Values{"answer": {"B"}})
	assert.Contains(t, body, "Incorrect. The correct answer is A.")

	_, body = c.post("/quiz/previous", nil)
	assert.Contains(t, body, "Question number 1?")

	_, body = c.post("/quiz/finish", nil)
	assert.Contains(t, body, "You answered 1 out of 2 correct")

	_, body = c.post("/quiz/restart", nil)
	assert.Contains(t, body, "Question number 1?")
	assert.Contains(t, body, "Score: 0 / 0 answered")

	_, body = c.post("/quiz/end", nil)
	assert.Contains(t, body, "Generate Quiz")

	_, body = c.get("/results")
	assert.Contains(t, body, "Generate Quiz")
}

func TestNewQuizShowsErrors(t *testing.T) {
	noDocs := func(context.Context, []quizbuilder.Upload, quizbuilder.GenerationRequest) (*quizbuilder.Quiz, *quizbuilder.VectorStore, error) {
		return nil, nil, quizbuilder.ErrNoDocuments
	}
	c := newTestClient(t, noDocs, nil)

	status, body := c.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"3"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "No documents found!")
	assert.Contains(t, body, `value="Photosynthesis"`)

	c = newTestClient(t, staticBuild(testQuiz(1)), nil)
	_, body = c.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"42"}})
	assert.Contains(t, body, "number of questions must be between 1 and 10")
}

func TestActionsWithoutQuiz(t *testing.T) {
	c := newTestClient(t, staticBuild(testQuiz(1)), nil)

	for _, path := range []string{"/quiz/next", "/quiz/previous", "/quiz/finish", "/quiz/restart", "/quiz/answer"} {
		status, body := c.post(path, url.Values{"answer": {"A"}})
		assert.Equal(t, http.StatusOK, status, path)
		assert.Contains(t, body, "Generate Quiz", path)
	}

	_, body := c.get("/quiz")
	assert.Contains(t, body, "Generate Quiz")
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, err := NewServer(Options{Build: staticBuild(testQuiz(2)), SessionSecret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	jarA, _ := cookiejar.New(nil)
	jarB, _ := cookiejar.New(nil)
	a := &testClient{t: t, server: ts, client: &http.Client{Jar: jarA}}
	b := &testClient{t: t, server: ts, client: &http.Client{Jar: jarB}}

	_, body := a.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"2"}})
	assert.Contains(t, body, "Question number 1?")

	_, body = b.get("/")
	assert.Contains(t, body, "Generate Quiz")
	assert.Equal(t, 1, srv.sessions.Size())

	_, body = b.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"1"}})
	assert.Contains(t, body, "Question number 1?")
	assert.Equal(t, 2, srv.sessions.Size())
}

func TestReadOnlyRequestsDoNotCreateSessions(t *testing.T) {
	srv, err := NewServer(Options{Build: staticBuild(testQuiz(1)), SessionSecret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	handler := srv.Routes()

	for i := 0; i < 100; i++ {
		for _, path := range []string{"/", "/quiz", "/results"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Empty(t, rec.Result().Cookies(), path)
		}
	}
	assert.Equal(t, 0, srv.sessions.Size())
}

func TestPlayArchivedQuiz(t *testing.T) {
	archive, err := quizbuilder.OpenArchive(filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	defer archive.Close()

	c := newTestClient(t, staticBuild(testQuiz(2)), archive)

	_, body := c.post("/quiz/new", url.Values{"topic": {"Photosynthesis"}, "num_questions": {"2"}})
	assert.Contains(t, body, "Question number 1?")

	_, body = c.post("/quiz/end", nil)
	assert.Contains(t, body, "Previous quizzes")
	assert.Contains(t, body, "/archive/quiz-1/play")

	_, body = c.post("/archive/quiz-1/play", nil)
	assert.Contains(t, body, "Question number 1?")

	status, _ := c.post("/archive/unknown/play", nil)
	assert.Equal(t, http.StatusNotFound, status)

	c.post("/quiz/end", nil)
	_, body = c.post("/archive/quiz-1/delete", nil)
	assert.Contains(t, body, "Generate Quiz")
	assert.NotContains(t, body, "Previous quizzes")

	status, _ = c.post("/archive/quiz-1/delete", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthz(t *testing.T) {
	c := newTestClient(t, staticBuild(testQuiz(1)), nil)
	status, body := c.get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Options{SessionSecret: []byte("x")})
	assert.Error(t, err)
	_, err = NewServer(Options{Build: staticBuild(testQuiz(1))})
	assert.Error(t, err)
}
