package quizbuilder

import (
	"strings"
)

// QuestionDedup rejects questions whose text repeats an accepted question
// of the same quiz
type QuestionDedup struct {
	seen   map[string]int // normalised text -> position in the quiz
	logger *LLMLogger
}

func NewQuestionDedup() *QuestionDedup {
	return &QuestionDedup{seen: make(map[string]int)}
}

// DedupResult represents the result of deduplication
type DedupResult struct {
	IsDuplicate bool   `json:"is_duplicate"`
	Reason      string `json:"reason"`
	DuplicateOf int    `json:"duplicate_of"` // position of the earlier question, -1 if none
}

// SetLogger attaches a transcript; nil detaches it
func (qd *QuestionDedup) SetLogger(logger *LLMLogger) {
	qd.logger = logger
}

// CheckDuplicate compares q against the accepted questions and, when it is
// new, records it as accepted
func (qd *QuestionDedup) CheckDuplicate(q *Question) DedupResult {
	key := normaliseText(q.Question)

	var result DedupResult
	if pos, ok := qd.seen[key]; ok {
		result = DedupResult{IsDuplicate: true, Reason: "same question text", DuplicateOf: pos}
	} else {
		qd.seen[key] = len(qd.seen)
		result = DedupResult{Reason: "new question", DuplicateOf: -1}
	}

	if qd.logger != nil {
		qd.logger.LogDedupResult(q.Question, result)
	}
	VerboseLog("Question %q: duplicate=%v, reason=%s", q.Question, result.IsDuplicate, result.Reason)
	return result
}

// Len is the number of distinct questions accepted so far
func (qd *QuestionDedup) Len() int {
	return len(qd.seen)
}

// Reset forgets every accepted question
func (qd *QuestionDedup) Reset() {
	qd.seen = make(map[string]int)
}

// normaliseText lowercases s and collapses runs of whitespace
func normaliseText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
