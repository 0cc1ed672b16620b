// backend/internal/collection/repository.go
package collection

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"quizzems/internal/models"
)

var ErrNotFound = errors.New("collection not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, coll *models.Collection) error {
	for i := range coll.Items {
		coll.Items[i].Position = i
	}
	if err := r.db.WithContext(ctx).Create(coll).Error; err != nil {
		log.Printf("Error creating collection: %v", err)
		return err
	}
	log.Printf("Created collection %s with %d items", coll.ID, len(coll.Items))
	return nil
}

// GetByID loads a collection with its items in order and its author.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	var coll models.Collection
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Author").
		First(&coll, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("Error getting collection %s: %v", id, err)
		return nil, err
	}
	return &coll, nil
}

// Latest lists the newest public collections without their items.
func (r *Repository) Latest(ctx context.Context, limit int) ([]models.Collection, error) {
	var colls []models.Collection
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("private = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&colls).Error
	return colls, err
}

func (r *Repository) Random(ctx context.Context, limit int) ([]models.Collection, error) {
	var colls []models.Collection
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("private = ?", false).
		Order("RANDOM()").
		Limit(limit).
		Find(&colls).Error
	return colls, err
}

// ByAuthor lists every collection of one author, private ones included.
func (r *Repository) ByAuthor(ctx context.Context, authorID string) ([]models.Collection, error) {
	var colls []models.Collection
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&colls).Error
	return colls, err
}

// Delete soft-deletes a collection. Its items stay for the record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Collection{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("Error deleting collection %s: %v", id, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	log.Printf("Deleted collection %s", id)
	return nil
}
