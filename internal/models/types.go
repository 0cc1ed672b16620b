// backend/internal/models/types.go
package models

// QuestionType selects how a card's prompt is rendered.
type QuestionType string

const (
	QuestionImage QuestionType = "image"
	QuestionText  QuestionType = "text"
	QuestionAudio QuestionType = "audio"
)

// AnswerType selects how a card is graded.
type AnswerType string

const (
	AnswerSingle         AnswerType = "single"
	AnswerMultipleChoice AnswerType = "multiplechoice"
	AnswerMultiAnswer    AnswerType = "multianswer"
)

func ParseQuestionType(s string) (QuestionType, bool) {
	switch t := QuestionType(s); t {
	case QuestionImage, QuestionText, QuestionAudio:
		return t, true
	}
	return QuestionText, false
}

func ParseAnswerType(s string) (AnswerType, bool) {
	switch t := AnswerType(s); t {
	case AnswerSingle, AnswerMultipleChoice, AnswerMultiAnswer:
		return t, true
	}
	return AnswerSingle, false
}

// ToastKind is the severity of a user facing notification.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"
)
