// backend/internal/models/collection.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Collection struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	AuthorID    string         `json:"author_id" gorm:"size:36;index"`
	Author      *User          `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Category    string         `json:"category" gorm:"not null"`
	Description string         `json:"description"`
	Thumbnail   string         `json:"thumbnail"`
	Slug        string         `json:"slug" gorm:"index"`
	Shuffle     bool           `json:"shuffle" gorm:"default:false"`
	Private     bool           `json:"private" gorm:"default:false"`
	Items       []Item         `json:"items,omitempty" gorm:"foreignKey:CollectionID"`
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Item struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	CollectionID string     `json:"collection_id" gorm:"size:36;index"`
	Position     int        `json:"position"`
	Question     string     `json:"question,omitempty"`
	Image        string     `json:"image,omitempty"`
	Audio        string     `json:"audio,omitempty"`
	Answer       string     `json:"answer,omitempty"`
	Answers      StringList `json:"answers,omitempty"`
	Options      StringList `json:"options,omitempty"`
	QuestionType string     `json:"questionType,omitempty"`
	AnswerType   string     `json:"answerType,omitempty"`
}

// ToRaw flattens a stored collection into the shape quiz sessions consume.
func (c *Collection) ToRaw() *RawCollection {
	raw := &RawCollection{
		ID:          c.ID,
		Category:    c.Category,
		Description: c.Description,
		Thumbnail:   c.Thumbnail,
		Author:      "Unknown",
		Shuffle:     c.Shuffle,
		Items:       make([]*RawItem, 0, len(c.Items)),
	}
	if c.Author != nil {
		raw.Author = c.Author.Username
		raw.AuthorSlug = c.Author.UsernameSlug
	}
	for _, it := range c.Items {
		raw.Items = append(raw.Items, &RawItem{
			ID:           strconv.FormatUint(uint64(it.ID), 10),
			Question:     it.Question,
			Image:        it.Image,
			Audio:        it.Audio,
			Answer:       it.Answer,
			Answers:      []string(it.Answers),
			Options:      []string(it.Options),
			QuestionType: it.QuestionType,
			AnswerType:   it.AnswerType,
		})
	}
	return raw
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (StringList) GormDataType() string { return "text" }

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*l = out
	return nil
}
