package quizbuilder

import (
	"errors"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoDocuments      = errors.New("no documents ingested")
	ErrNoMatchingChunks = errors.New("no matching chunks for query")
	ErrStoreNotCreated  = errors.New("vector store not yet created")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrNoQuestions      = errors.New("no questions generated")
	ErrNoAnswer         = errors.New("no answer selected")
	ErrQuizNotActive    = errors.New("no quiz in progress")
	ErrInvalidRequest   = errors.New("invalid generation request")
)

// UserMessage maps an error to the text shown to the user. Errors outside
// the known set are logged and replaced by a generic message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoDocuments):
		return "No documents found! Upload at least one PDF."
	case errors.Is(err, ErrNoMatchingChunks):
		return "No matching documents found!"
	case errors.Is(err, ErrStoreNotCreated):
		return "Chroma Collection has not been created!"
	case errors.Is(err, ErrIndexOutOfRange):
		return "That question does not exist."
	case errors.Is(err, ErrNoQuestions):
		return "The model did not produce any usable questions. Try another topic."
	case errors.Is(err, ErrNoAnswer):
		return "Choose an answer first."
	case errors.Is(err, ErrQuizNotActive):
		return "There is no quiz in progress."
	case errors.Is(err, ErrInvalidRequest):
		return err.Error()
	default:
		log.Error().Err(err).Msg("Unexpected error")
		return "Something went wrong. Please try again."
	}
}
