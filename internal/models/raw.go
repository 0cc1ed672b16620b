// backend/internal/models/raw.go
package models

// RawItem is a collection item as a provider hands it over, before it is
// turned into a card. Only Answer or Answers is normally set.
type RawItem struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	Question     string   `json:"question,omitempty" yaml:"question,omitempty"`
	Image        string   `json:"image,omitempty" yaml:"image,omitempty"`
	Audio        string   `json:"audio,omitempty" yaml:"audio,omitempty"`
	Answer       string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Answers      []string `json:"answers,omitempty" yaml:"answers,omitempty"`
	Options      []string `json:"options,omitempty" yaml:"options,omitempty"`
	QuestionType string   `json:"questionType,omitempty" yaml:"questionType,omitempty"`
	AnswerType   string   `json:"answerType,omitempty" yaml:"answerType,omitempty"`
}

// RawCollection is the provider-facing shape of a collection.
type RawCollection struct {
	ID          string     `json:"id" yaml:"id"`
	Category    string     `json:"category" yaml:"category"`
	Description string     `json:"description" yaml:"description"`
	Thumbnail   string     `json:"thumbnail" yaml:"thumbnail"`
	Author      string     `json:"author" yaml:"author"`
	AuthorSlug  string     `json:"author_slug" yaml:"author_slug"`
	Shuffle     bool       `json:"shuffle" yaml:"shuffle"`
	Items       []*RawItem `json:"items" yaml:"items"`
}
