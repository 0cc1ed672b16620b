package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizzems/internal/models"
)

func TestMapCards(t *testing.T) {
	tests := []struct {
		name         string
		item         *models.RawItem
		questionType models.QuestionType
		answerType   models.AnswerType
		prompt       string
		answers      []string
	}{
		{
			name:         "text question",
			item:         &models.RawItem{ID: "a", Question: "2+2?", Answer: "4"},
			questionType: models.QuestionText,
			answerType:   models.AnswerSingle,
			prompt:       "2+2?",
			answers:      []string{"4"},
		},
		{
			name:         "image wins over question",
			item:         &models.RawItem{ID: "b", Image: "https://img/cat.png", Question: "What is it?", Answer: "cat"},
			questionType: models.QuestionImage,
			answerType:   models.AnswerSingle,
			prompt:       "https://img/cat.png",
			answers:      []string{"cat"},
		},
		{
			name:         "audio only",
			item:         &models.RawItem{ID: "c", Audio: "https://youtu.be/x", Answer: "Song"},
			questionType: models.QuestionAudio,
			answerType:   models.AnswerSingle,
			prompt:       "https://youtu.be/x",
			answers:      []string{"Song"},
		},
		{
			name:         "several answers",
			item:         &models.RawItem{ID: "d", Question: "Primary colour?", Answers: []string{"red", "blue", "yellow"}},
			questionType: models.QuestionText,
			answerType:   models.AnswerMultiAnswer,
			prompt:       "Primary colour?",
			answers:      []string{"red", "blue", "yellow"},
		},
		{
			name:         "options make multiple choice",
			item:         &models.RawItem{ID: "e", Question: "Largest planet?", Answer: "Jupiter", Options: []string{"Mars", "Jupiter"}},
			questionType: models.QuestionText,
			answerType:   models.AnswerMultipleChoice,
			prompt:       "Largest planet?",
			answers:      []string{"Jupiter"},
		},
		{
			name:         "explicit hints win",
			item:         &models.RawItem{ID: "f", Question: "Q", Image: "img", Answer: "A", QuestionType: "Text", AnswerType: "multiplechoice"},
			questionType: models.QuestionText,
			answerType:   models.AnswerMultipleChoice,
			prompt:       "Q",
			answers:      []string{"A"},
		},
		{
			name:         "unknown hint falls back to inference",
			item:         &models.RawItem{ID: "g", Audio: "clip.mp3", Answer: "A", QuestionType: "video"},
			questionType: models.QuestionAudio,
			answerType:   models.AnswerSingle,
			prompt:       "clip.mp3",
			answers:      []string{"A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := MapCards([]*models.RawItem{tt.item})
			require.Len(t, cards, 1)
			c := cards[0]
			assert.Equal(t, tt.item.ID, c.ID)
			assert.Equal(t, tt.questionType, c.QuestionType)
			assert.Equal(t, tt.answerType, c.AnswerType)
			assert.Equal(t, tt.prompt, c.Prompt)
			assert.Equal(t, tt.answers, c.Answers)
			assert.Empty(t, c.UserAnswer)
			assert.False(t, c.Revealed)
			assert.Nil(t, c.IsCorrect)
			assert.Equal(t, 1.0, c.Scale)
		})
	}
}

func TestMapCardsSkipsNilAndFillsIDs(t *testing.T) {
	cards := MapCards([]*models.RawItem{
		{Question: "first", Answer: "1"},
		nil,
		{Question: "third", Answer: "3"},
	})
	require.Len(t, cards, 2)
	assert.Equal(t, "0", cards[0].ID)
	assert.Equal(t, "2", cards[1].ID)
	assert.Equal(t, "3", cards[1].Answer())
}
