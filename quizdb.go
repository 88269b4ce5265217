package quizbuilder

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ErrQuizNotFound is returned when an archived quiz id is unknown
var ErrQuizNotFound = errors.New("quiz not found")

// Archive stores finished question banks in SQLite so they can be replayed
type Archive struct {
	db *sql.DB
}

// ArchivedQuiz is a row of the quizzes table
type ArchivedQuiz struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	NumQuestions int       `json:"num_questions"`
	Sources      []string  `json:"sources"`
	CreatedAt    time.Time `json:"created_at"`
}

// OpenArchive opens the database at path and makes sure the tables exist
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("Quiz archive opened")
	return a, nil
}

// Close closes the database connection
func (a *Archive) Close() error {
	return a.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (a *Archive) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			num_questions INTEGER NOT NULL,
			sources TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			choices TEXT NOT NULL,
			answer TEXT NOT NULL,
			explanation TEXT,
			PRIMARY KEY (quiz_id, question_num),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveQuiz writes the quiz and its questions in one transaction
func (a *Archive) SaveQuiz(quiz *Quiz) error {
	sources, err := json.Marshal(quiz.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO quizzes (id, topic, num_questions, sources, created_at) VALUES (?, ?, ?, ?, ?)",
		quiz.ID, quiz.Topic, len(quiz.Questions), string(sources), quiz.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		choices, err := ChoicesToJSON(q.Choices)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			"INSERT INTO questions (quiz_id, question_num, text, choices, answer, explanation) VALUES (?, ?, ?, ?, ?, ?)",
			quiz.ID, i+1, q.Question, choices, q.Answer, q.Explanation,
		)
		if err != nil {
			return fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz: %w", err)
	}
	log.Info().Str("quiz_id", quiz.ID).Int("questions", len(quiz.Questions)).Msg("Quiz archived")
	return nil
}

// GetQuiz loads a quiz with its questions in order
func (a *Archive) GetQuiz(id string) (*Quiz, error) {
	var (
		quiz    Quiz
		sources string
	)
	err := a.db.QueryRow(
		"SELECT id, topic, sources, created_at FROM quizzes WHERE id = ?",
		id,
	).Scan(&quiz.ID, &quiz.Topic, &sources, &quiz.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &quiz.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}

	rows, err := a.db.Query(
		"SELECT text, choices, answer, explanation FROM questions WHERE quiz_id = ? ORDER BY question_num",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q           Question
			choices     string
			explanation sql.NullString
		)
		if err := rows.Scan(&q.Question, &choices, &q.Answer, &explanation); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Choices, err = JSONToChoices(choices); err != nil {
			return nil, err
		}
		q.Explanation = explanation.String
		quiz.Questions = append(quiz.Questions, q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return &quiz, nil
}

// ListQuizzes returns archived quizzes newest first, optionally limited by count
func (a *Archive) ListQuizzes(limit int) ([]ArchivedQuiz, error) {
	query := "SELECT id, topic, num_questions, sources, created_at FROM quizzes ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []ArchivedQuiz
	for rows.Next() {
		var (
			quiz    ArchivedQuiz
			sources string
		)
		if err := rows.Scan(&quiz.ID, &quiz.Topic, &quiz.NumQuestions, &sources, &quiz.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &quiz.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz and its questions
func (a *Archive) DeleteQuiz(id string) error {
	res, err := a.db.Exec("DELETE FROM quizzes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrQuizNotFound, id)
	}
	return nil
}

// SourcesLabel joins the source file names for display
func (q ArchivedQuiz) SourcesLabel() string {
	return strings.Join(q.Sources, ", ")
}

// ChoicesToJSON converts choices to the stored JSON form
func ChoicesToJSON(choices []Choice) (string, error) {
	data, err := json.Marshal(choices)
	if err != nil {
		return "", fmt.Errorf("failed to marshal choices: %w", err)
	}
	return string(data), nil
}

// JSONToChoices converts the stored JSON form back to choices
func JSONToChoices(choicesJSON string) ([]Choice, error) {
	var choices []Choice
	if err := json.Unmarshal([]byte(choicesJSON), &choices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal choices: %w", err)
	}
	return choices, nil
}
