// backend/internal/quiz/types.go
package quiz

import (
	"slices"

	"quizzems/internal/models"
)

type Mode string

const (
	ModeFillInTheBlank Mode = "fill_in_the_blank"
	ModeMultipleChoice Mode = "multiple_choice"
	ModeFlashcard      Mode = "flashcard"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeFillInTheBlank, ModeMultipleChoice, ModeFlashcard:
		return true
	}
	return false
}

// Phase is derived from the state, never stored.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseLoading   Phase = "loading"
	PhaseError     Phase = "error"
	PhaseReady     Phase = "ready"
	PhaseAnswering Phase = "answering"
	PhaseRevealing Phase = "revealing"
	PhaseComplete  Phase = "complete"
)

// Card is one quiz item together with the user's progress on it.
type Card struct {
	ID           string              `json:"id"`
	QuestionType models.QuestionType `json:"questionType"`
	AnswerType   models.AnswerType   `json:"answerType"`
	Prompt       string              `json:"prompt"`
	Answers      []string            `json:"answers"`
	Options      []string            `json:"options,omitempty"`

	UserAnswer string `json:"userAnswer"`
	Revealed   bool   `json:"revealed"`
	// IsCorrect is nil until the card is revealed.
	IsCorrect *bool `json:"isCorrect,omitempty"`
	// ExternallyGraded marks an IsCorrect supplied by the caller, e.g. a
	// multiple choice click, which reveal must not overwrite.
	ExternallyGraded bool `json:"externallyGraded,omitempty"`

	Hidden bool    `json:"hidden"`
	Scale  float64 `json:"scale"`
	Loaded bool    `json:"loaded"`
}

// Answer returns the primary canonical answer.
func (c Card) Answer() string {
	if len(c.Answers) == 0 {
		return ""
	}
	return c.Answers[0]
}

func (c Card) clone() Card {
	c.Answers = slices.Clone(c.Answers)
	c.Options = slices.Clone(c.Options)
	if c.IsCorrect != nil {
		v := *c.IsCorrect
		c.IsCorrect = &v
	}
	return c
}

// unreveal clears the reveal along with any grade attached to it.
func (c Card) unreveal() Card {
	c.Revealed = false
	c.IsCorrect = nil
	c.ExternallyGraded = false
	return c
}

// CardUpdate carries the fields a caller wants to change on one card.
type CardUpdate struct {
	UserAnswer *string  `json:"userAnswer,omitempty"`
	Revealed   *bool    `json:"revealed,omitempty"`
	IsCorrect  *bool    `json:"isCorrect,omitempty"`
	Hidden     *bool    `json:"hidden,omitempty"`
	Scale      *float64 `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Loaded     *bool    `json:"loaded,omitempty"`
}

// merge folds next on top of u; fields set in next win.
func (u CardUpdate) merge(next CardUpdate) CardUpdate {
	if next.UserAnswer != nil {
		u.UserAnswer = next.UserAnswer
	}
	if next.Revealed != nil {
		u.Revealed = next.Revealed
	}
	if next.IsCorrect != nil {
		u.IsCorrect = next.IsCorrect
	}
	if next.Hidden != nil {
		u.Hidden = next.Hidden
	}
	if next.Scale != nil {
		u.Scale = next.Scale
	}
	if next.Loaded != nil {
		u.Loaded = next.Loaded
	}
	return u
}

// apply returns c with the update merged in. A supplied IsCorrect is an
// external grade and reveals the card.
func (u CardUpdate) apply(c Card) Card {
	if u.UserAnswer != nil {
		c.UserAnswer = *u.UserAnswer
	}
	if u.Hidden != nil {
		c.Hidden = *u.Hidden
	}
	if u.Scale != nil {
		c.Scale = *u.Scale
	}
	if u.Loaded != nil {
		c.Loaded = *u.Loaded
	}
	if u.Revealed != nil {
		if *u.Revealed {
			c.Revealed = true
		} else {
			c = c.unreveal()
		}
	}
	if u.IsCorrect != nil {
		v := *u.IsCorrect
		c.IsCorrect = &v
		c.ExternallyGraded = true
		c.Revealed = true
	}
	return c
}

func (u CardUpdate) empty() bool {
	return u == CardUpdate{}
}

// Collection is the metadata of the loaded collection.
type Collection struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Thumbnail     string `json:"thumbnail"`
	Author        string `json:"author"`
	AuthorSlug    string `json:"authorSlug"`
	ShuffleOnLoad bool   `json:"shuffle"`
}

// State is a point in time copy of a session.
type State struct {
	Cards          []Card      `json:"cards"`
	Collection     *Collection `json:"collection"`
	Mode           Mode        `json:"mode"`
	IsLoading      bool        `json:"isLoading"`
	LoadingError   string      `json:"loadingError,omitempty"`
	IsComplete     bool        `json:"isComplete"`
	ShuffleTrigger int         `json:"shuffleTrigger"`
	IsPractice     bool        `json:"isPractice"`
	PartyCode      string      `json:"partyCode,omitempty"`
	Phase          Phase       `json:"phase"`
}

func (s State) phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.LoadingError != "":
		return PhaseError
	case s.Collection == nil:
		return PhaseEmpty
	case s.IsComplete:
		return PhaseComplete
	}
	answering := false
	for _, c := range s.Cards {
		if c.Revealed {
			return PhaseRevealing
		}
		if c.UserAnswer != "" {
			answering = true
		}
	}
	if answering {
		return PhaseAnswering
	}
	return PhaseReady
}
