// backend/internal/quiz/cards.go
package quiz

import (
	"strconv"
	"strings"

	"quizzems/internal/models"
)

// MapCards turns provider items into fresh, unanswered cards. nil items are
// skipped.
func MapCards(items []*models.RawItem) []Card {
	cards := make([]Card, 0, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		cards = append(cards, mapCard(i, it))
	}
	return cards
}

func mapCard(position int, it *models.RawItem) Card {
	qt := inferQuestionType(it)
	at := inferAnswerType(it)

	id := it.ID
	if id == "" {
		id = strconv.Itoa(position)
	}

	return Card{
		ID:           id,
		QuestionType: qt,
		AnswerType:   at,
		Prompt:       promptFor(qt, it),
		Answers:      answersOf(it),
		Options:      nonEmpty(it.Options),
		UserAnswer:   "",
		Revealed:     false,
		Scale:        1,
	}
}

func inferQuestionType(it *models.RawItem) models.QuestionType {
	if t, ok := models.ParseQuestionType(strings.ToLower(it.QuestionType)); ok {
		return t
	}
	switch {
	case it.Image != "":
		return models.QuestionImage
	case it.Question != "":
		return models.QuestionText
	case it.Audio != "":
		return models.QuestionAudio
	}
	return models.QuestionText
}

func inferAnswerType(it *models.RawItem) models.AnswerType {
	if t, ok := models.ParseAnswerType(strings.ToLower(it.AnswerType)); ok {
		return t
	}
	switch {
	case len(nonEmpty(it.Answers)) > 1:
		return models.AnswerMultiAnswer
	case len(nonEmpty(it.Options)) > 0:
		return models.AnswerMultipleChoice
	}
	return models.AnswerSingle
}

func promptFor(qt models.QuestionType, it *models.RawItem) string {
	switch qt {
	case models.QuestionImage:
		if it.Image != "" {
			return it.Image
		}
	case models.QuestionAudio:
		if it.Audio != "" {
			return it.Audio
		}
	}
	return it.Question
}

func answersOf(it *models.RawItem) []string {
	if answers := nonEmpty(it.Answers); len(answers) > 0 {
		return answers
	}
	return []string{it.Answer}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
