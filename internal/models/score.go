// backend/internal/models/score.go
package models

import "time"

// CompletedQuiz is one finished, non-practice attempt.
type CompletedQuiz struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	UserID       string    `json:"user_id" gorm:"size:36;index;not null"`
	CollectionID string    `json:"collection_id" gorm:"size:36;index;not null"`
	Percentage   int       `json:"percentage"`
}

type LeaderboardEntry struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Percentage int    `json:"percentage"`
}
