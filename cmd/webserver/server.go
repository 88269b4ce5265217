package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quizbuilder"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName   = "quiz-session"
	sessionIDKey = "sid"
	maxUpload    = 32 << 20
	sessionTTL   = 24 * time.Hour
)

// BuildFunc turns uploaded PDFs and a request into a quiz and the vector
// store it was generated from
type BuildFunc func(ctx context.Context, uploads []quizbuilder.Upload, req quizbuilder.GenerationRequest) (*quizbuilder.Quiz, *quizbuilder.VectorStore, error)

type Options struct {
	Build         BuildFunc
	Archive       *quizbuilder.Archive // optional
	SessionSecret []byte
	Timeout       time.Duration
}

type Server struct {
	build     BuildFunc
	archive   *quizbuilder.Archive
	cookies   *sessions.CookieStore
	sessions  *quizbuilder.SessionStore
	templates map[string]*template.Template
	timeout   time.Duration
}

type builderPage struct {
	Error        string
	Topic        string
	NumQuestions int
	Difficulty   string
	Min, Max     int
	Quizzes      []quizbuilder.ArchivedQuiz
}

type questionPage struct {
	quizbuilder.View
	Error string
}

func NewServer(opts Options) (*Server, error) {
	if opts.Build == nil {
		return nil, errors.New("build function is required")
	}
	if len(opts.SessionSecret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}

	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"percent": func(a, b int) float64 {
			if b == 0 {
				return 0
			}
			return float64(a) / float64(b) * 100
		},
		"seq": func(from, to int) []int {
			var out []int
			for i := from; i <= to; i++ {
				out = append(out, i)
			}
			return out
		},
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{"builder", "question", "results"} {
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		templates[name] = tmpl
	}

	cookies := sessions.NewCookieStore(opts.SessionSecret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		build:     opts.Build,
		archive:   opts.Archive,
		cookies:   cookies,
		sessions:  quizbuilder.NewSessionStore(sessionTTL),
		templates: templates,
		timeout:   opts.Timeout,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /quiz/new", s.handleNewQuiz)
	mux.HandleFunc("GET /quiz", s.handleQuestion)
	mux.HandleFunc("POST /quiz/answer", s.handleAnswer)
	mux.HandleFunc("POST /quiz/next", s.action((*quizbuilder.QuizSession).Next, "/quiz"))
	mux.HandleFunc("POST /quiz/previous", s.action((*quizbuilder.QuizSession).Previous, "/quiz"))
	mux.HandleFunc("POST /quiz/finish", s.action((*quizbuilder.QuizSession).Finish, "/results"))
	mux.HandleFunc("POST /quiz/restart", s.action((*quizbuilder.QuizSession).Restart, "/quiz"))
	mux.HandleFunc("POST /quiz/end", s.handleEnd)
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("POST /archive/{id}/play", s.handlePlayArchived)
	mux.HandleFunc("POST /archive/{id}/delete", s.handleDeleteArchived)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// lookup returns the quiz session bound to the request's cookie, if any
func (s *Server) lookup(r *http.Request) (*quizbuilder.QuizSession, bool) {
	cookie, _ := s.cookies.Get(r, cookieName)
	id, ok := cookie.Values[sessionIDKey].(string)
	if !ok {
		return nil, false
	}
	return s.sessions.Get(id)
}

// session returns the quiz session bound to the request's cookie, creating
// one when the cookie is missing or refers to an unknown session
func (s *Server) session(w http.ResponseWriter, r *http.Request) *quizbuilder.QuizSession {
	if qs, ok := s.lookup(r); ok {
		return qs
	}

	cookie, _ := s.cookies.Get(r, cookieName)
	qs := s.sessions.Create()
	cookie.Values[sessionIDKey] = qs.ID
	if err := cookie.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Session save error")
	}
	log.Debug().Str("session", qs.ID).Msg("Created quiz session")
	return qs
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	qs, ok := s.lookup(r)
	if !ok {
		s.renderBuilder(w, builderPage{NumQuestions: 1})
		return
	}
	switch qs.Mode() {
	case quizbuilder.ModeQuiz:
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
		return
	case quizbuilder.ModeResults:
		http.Redirect(w, r, "/results", http.StatusSeeOther)
		return
	}
	s.renderBuilder(w, builderPage{NumQuestions: 1})
}

func (s *Server) handleNewQuiz(w http.ResponseWriter, r *http.Request) {
	qs := s.session(w, r)

	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	page := builderPage{
		Topic:      strings.TrimSpace(r.FormValue("topic")),
		Difficulty: r.FormValue("difficulty"),
	}
	numQuestions, err := strconv.Atoi(r.FormValue("num_questions"))
	if err != nil {
		numQuestions = 0
	}
	page.NumQuestions = numQuestions

	uploads, err := readUploads(r)
	if err != nil {
		page.Error = quizbuilder.UserMessage(err)
		s.renderBuilder(w, page)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	quiz, store, err := s.build(ctx, uploads, quizbuilder.GenerationRequest{
		Topic:        page.Topic,
		NumQuestions: numQuestions,
		Difficulty:   page.Difficulty,
	})
	if err != nil {
		log.Warn().Err(err).Str("session", qs.ID).Msg("Quiz build failed")
		page.Error = quizbuilder.UserMessage(err)
		s.renderBuilder(w, page)
		return
	}

	if s.archive != nil {
		if err := s.archive.SaveQuiz(quiz); err != nil {
			log.Warn().Err(err).Str("quiz_id", quiz.ID).Msg("Failed to archive quiz")
		}
	}

	if store != nil {
		qs.AttachStore(store)
	}
	if err := qs.Start(quiz); err != nil {
		page.Error = quizbuilder.UserMessage(err)
		s.renderBuilder(w, page)
		return
	}
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

func readUploads(r *http.Request) ([]quizbuilder.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var uploads []quizbuilder.Upload
	for _, fh := range r.MultipartForm.File["pdfs"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, quizbuilder.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	qs, ok := s.lookup(r)
	if !ok || qs.Mode() != quizbuilder.ModeQuiz {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, "question", questionPage{View: qs.View()})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	qs, ok := s.lookup(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	_, err := qs.SubmitAnswer(r.FormValue("answer"))
	switch {
	case errors.Is(err, quizbuilder.ErrQuizNotActive):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case err != nil:
		s.render(w, "question", questionPage{View: qs.View(), Error: quizbuilder.UserMessage(err)})
	default:
		http.Redirect(w, r, "/quiz", http.StatusSeeOther)
	}
}

// action wraps a session transition that redirects to next on success
func (s *Server) action(fn func(*quizbuilder.QuizSession) error, next string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, ok := s.lookup(r)
		if !ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		if err := fn(qs); err != nil {
			log.Debug().Err(err).Str("session", qs.ID).Str("path", r.URL.Path).Msg("Ignoring action")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if qs, ok := s.lookup(r); ok {
		qs.End()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	qs, ok := s.lookup(r)
	if !ok || qs.Mode() != quizbuilder.ModeResults {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, "results", qs.View())
}

func (s *Server) handlePlayArchived(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}
	qs := s.session(w, r)

	quiz, err := s.archive.GetQuiz(r.PathValue("id"))
	if errors.Is(err, quizbuilder.ErrQuizNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load archived quiz")
		http.Error(w, "Failed to load quiz", http.StatusInternalServerError)
		return
	}

	if err := qs.Start(quiz); err != nil {
		s.renderBuilder(w, builderPage{Error: quizbuilder.UserMessage(err)})
		return
	}
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

func (s *Server) handleDeleteArchived(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}
	err := s.archive.DeleteQuiz(r.PathValue("id"))
	if errors.Is(err, quizbuilder.ErrQuizNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete archived quiz")
		http.Error(w, "Failed to delete quiz", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderBuilder(w http.ResponseWriter, page builderPage) {
	page.Min, page.Max = quizbuilder.MinQuestions, quizbuilder.MaxQuestions
	if s.archive != nil {
		quizzes, err := s.archive.ListQuizzes(20)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to list archived quizzes")
		}
		page.Quizzes = quizzes
	}
	s.render(w, "builder", page)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Template error")
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
