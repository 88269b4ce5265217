package quizbuilder

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// QuestionChecker validates a generated record and normalises the parts
// that can be fixed without another model call.
type QuestionChecker struct {
	logger *LLMLogger
}

func NewQuestionChecker() *QuestionChecker {
	return &QuestionChecker{}
}

// SetLogger attaches a transcript; nil detaches it
func (qc *QuestionChecker) SetLogger(logger *LLMLogger) {
	qc.logger = logger
}

// CheckQuestion decides whether q is accepted, revised or rejected
func (qc *QuestionChecker) CheckQuestion(q *Question) ValidationResult {
	result := qc.check(q)

	text := ""
	if q != nil {
		text = q.Question
	}
	if qc.logger != nil {
		qc.logger.LogQuestionResult(text, result.Action, result.Reason)
	}
	VerboseLog("Question %q: %s - %s", text, result.Action, result.Reason)
	return result
}

func (qc *QuestionChecker) check(q *Question) ValidationResult {
	if q == nil {
		return reject("no question returned")
	}

	revised := Question{
		Question:    strings.TrimSpace(q.Question),
		Explanation: strings.TrimSpace(q.Explanation),
		Choices:     make([]Choice, 0, len(q.Choices)),
	}
	if revised.Question == "" {
		return reject("question text is empty")
	}
	if len(q.Choices) < 2 {
		return reject(fmt.Sprintf("need at least 2 choices, got %d", len(q.Choices)))
	}

	for _, c := range q.Choices {
		key := normaliseKey(c.Key)
		if key == "" {
			return reject("choice with empty key")
		}
		value := strings.TrimSpace(c.Value)
		if value == "" {
			return reject(fmt.Sprintf("choice %s has no text", key))
		}
		revised.Choices = append(revised.Choices, Choice{Key: key, Value: value})
	}

	keys := lo.Map(revised.Choices, func(c Choice, _ int) string { return c.Key })
	if dup := lo.FindDuplicates(keys); len(dup) > 0 {
		return reject(fmt.Sprintf("duplicate choice keys: %s", strings.Join(dup, ", ")))
	}

	answer, ok := resolveAnswer(q.Answer, revised.Choices)
	if !ok {
		return reject(fmt.Sprintf("answer %q does not match any choice", q.Answer))
	}
	revised.Answer = answer

	if sameQuestion(q, &revised) {
		return ValidationResult{Action: ActionAccept, Reason: "well formed"}
	}
	return ValidationResult{
		Action:          ActionRevise,
		Reason:          "normalised keys, answer or whitespace",
		RevisedQuestion: &revised,
	}
}

func reject(reason string) ValidationResult {
	return ValidationResult{Action: ActionReject, Reason: reason}
}

// normaliseKey turns "a", " A) " or "A." into "A"
func normaliseKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimRight(key, ").:")
	key = strings.TrimLeft(key, "(")
	return strings.ToUpper(strings.TrimSpace(key))
}

// resolveAnswer maps the model's answer onto a choice key. The answer may be
// the key in any common form or the full text of the choice.
func resolveAnswer(answer string, choices []Choice) (string, bool) {
	key := normaliseKey(answer)
	if key == "" {
		return "", false
	}
	if c, ok := lo.Find(choices, func(c Choice) bool { return c.Key == key }); ok {
		return c.Key, true
	}

	text := strings.TrimSpace(answer)
	if c, ok := lo.Find(choices, func(c Choice) bool { return strings.EqualFold(strings.TrimSpace(c.Value), text) }); ok {
		return c.Key, true
	}

	// "B) Paris" style
	if i := strings.IndexAny(answer, ").:"); i > 0 {
		prefix := normaliseKey(answer[:i])
		if c, ok := lo.Find(choices, func(c Choice) bool { return c.Key == prefix }); ok {
			return c.Key, true
		}
	}
	return "", false
}

func sameQuestion(a, b *Question) bool {
	if a.Question != b.Question || a.Answer != b.Answer || a.Explanation != b.Explanation {
		return false
	}
	if len(a.Choices) != len(b.Choices) {
		return false
	}
	for i := range a.Choices {
		if a.Choices[i] != b.Choices[i] {
			return false
		}
	}
	return true
}
