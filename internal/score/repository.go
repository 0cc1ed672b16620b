// backend/internal/score/repository.go
package score

import (
	"context"
	"log"

	"gorm.io/gorm"

	"quizzems/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, cq *models.CompletedQuiz) error {
	if err := r.db.WithContext(ctx).Create(cq).Error; err != nil {
		log.Printf("Error saving completed quiz for user %s: %v", cq.UserID, err)
		return err
	}
	return nil
}

// ListByUser returns a user's completed quizzes, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.CompletedQuiz, error) {
	var out []models.CompletedQuiz
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

// Leaderboard ranks users by their best percentage on a collection.
func (r *Repository) Leaderboard(ctx context.Context, collectionID string, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.user_id AS user_id,
		       COALESCE(u.username, '') AS username,
		       MAX(c.percentage) AS percentage
		FROM completed_quizzes c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.collection_id = ?
		GROUP BY c.user_id, u.username
		ORDER BY percentage DESC, c.user_id ASC
		LIMIT ?
	`, collectionID, limit).Scan(&entries).Error
	if err != nil {
		log.Printf("Error building leaderboard for collection %s: %v", collectionID, err)
		return nil, err
	}
	return entries, nil
}
