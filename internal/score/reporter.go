// backend/internal/score/reporter.go
package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"quizzems/internal/models"
)

// Cache is the leaderboard part of the Redis cache.
type Cache interface {
	SetBestScore(ctx context.Context, collectionID, userID string, pct int) (bool, error)
	GetLeaderboard(ctx context.Context, collectionID string, limit int) ([]models.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, collectionID string, entries []models.LeaderboardEntry) error
}

// DBReporter stores completed quizzes and keeps the cached leaderboard
// current. The token is not needed; the caller already authenticated.
type DBReporter struct {
	repo  *Repository
	cache Cache
}

// NewDBReporter returns a reporter backed by repo. c may be nil.
func NewDBReporter(repo *Repository, c Cache) *DBReporter {
	return &DBReporter{repo: repo, cache: c}
}

func (r *DBReporter) Report(ctx context.Context, userID, collectionID string, percentage int, _ string) error {
	cq := &models.CompletedQuiz{
		UserID:       userID,
		CollectionID: collectionID,
		Percentage:   percentage,
	}
	if err := r.repo.Save(ctx, cq); err != nil {
		return err
	}
	log.Printf("Saved %d%% for user %s on collection %s", percentage, userID, collectionID)

	if r.cache != nil {
		if _, err := r.cache.SetBestScore(ctx, collectionID, userID, percentage); err != nil {
			log.Printf("Error updating cached leaderboard for collection %s: %v", collectionID, err)
		}
	}
	return nil
}

// HTTPReporter posts completed quizzes to a remote users API.
type HTTPReporter struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReporter(baseURL string, client *http.Client) *HTTPReporter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPReporter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type completedQuizRequest struct {
	UserID     string `json:"user_id"`
	QuizID     string `json:"quiz_id"`
	Percentage int    `json:"percentage"`
}

func (r *HTTPReporter) Report(ctx context.Context, userID, collectionID string, percentage int, token string) error {
	body, err := json.Marshal(completedQuizRequest{
		UserID:     userID,
		QuizID:     collectionID,
		Percentage: percentage,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/users/completed-quiz", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("report completed quiz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report completed quiz: unexpected status %d", resp.StatusCode)
	}
	return nil
}
