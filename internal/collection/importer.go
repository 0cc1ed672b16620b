// backend/internal/collection/importer.go
package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"quizzems/internal/auth"
	"quizzems/internal/models"
)

// UserFinder resolves the author named in an import file.
type UserFinder interface {
	GetUserByUsername(username string) (*models.User, error)
}

// Importer loads collections from YAML documents into the repository.
type Importer struct {
	repo  *Repository
	users UserFinder
}

func NewImporter(repo *Repository, users UserFinder) *Importer {
	return &Importer{repo: repo, users: users}
}

func (im *Importer) ImportFile(ctx context.Context, path string) ([]*models.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return im.Import(ctx, f)
}

// Import stores every YAML document in r as one collection. Documents are
// validated before anything is written.
func (im *Importer) Import(ctx context.Context, r io.Reader) ([]*models.Collection, error) {
	raws, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}

	colls := make([]*models.Collection, 0, len(raws))
	for _, raw := range raws {
		colls = append(colls, im.fromRaw(raw))
	}

	for _, coll := range colls {
		if err := im.repo.Create(ctx, coll); err != nil {
			return nil, fmt.Errorf("import %s: %w", coll.Category, err)
		}
	}
	log.Printf("Imported %d collections", len(colls))
	return colls, nil
}

// DecodeYAML reads every document of a multi-document YAML stream. Each
// document must satisfy the collection schema.
func DecodeYAML(r io.Reader) ([]*models.RawCollection, error) {
	dec := yaml.NewDecoder(r)
	var out []*models.RawCollection
	for n := 1; ; n++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}

		var doc any
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", n, err)
		}
		if err := ValidateDocument(doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", n, err)
		}

		var raw models.RawCollection
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("document %d: %w", n, err)
		}
		out = append(out, &raw)
	}
	return out, nil
}

func (im *Importer) fromRaw(raw *models.RawCollection) *models.Collection {
	coll := &models.Collection{
		ID:          raw.ID,
		Category:    raw.Category,
		Description: raw.Description,
		Thumbnail:   raw.Thumbnail,
		Slug:        auth.Slugify(raw.Category),
		Shuffle:     raw.Shuffle,
	}
	if raw.Author != "" && im.users != nil {
		user, err := im.users.GetUserByUsername(raw.Author)
		if err != nil {
			log.Printf("Author %s not found, importing %s without an author", raw.Author, raw.Category)
		} else {
			coll.AuthorID = user.ID
		}
	}
	for _, it := range raw.Items {
		if it == nil {
			continue
		}
		coll.Items = append(coll.Items, models.Item{
			Question:     it.Question,
			Image:        it.Image,
			Audio:        it.Audio,
			Answer:       it.Answer,
			Answers:      it.Answers,
			Options:      it.Options,
			QuestionType: it.QuestionType,
			AnswerType:   it.AnswerType,
		})
	}
	return coll
}
