// backend/internal/score/handler.go
package score

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"quizzems/internal/auth"
	"quizzems/internal/models"
)

const defaultLeaderboardSize = 10

// UsernameLookup resolves user ids for leaderboard entries served from cache.
type UsernameLookup interface {
	Usernames(ids []string) (map[string]string, error)
}

type Handler struct {
	repo  *Repository
	cache Cache
	users UsernameLookup
}

// NewHandler serves scores from repo. cache and users may be nil.
func NewHandler(repo *Repository, c Cache, users UsernameLookup) *Handler {
	return &Handler{repo: repo, cache: c, users: users}
}

func (h *Handler) RegisterRoutes(r *mux.Router, jwtSecret string) {
	s := r.PathPrefix("/scores").Subrouter()
	s.HandleFunc("/leaderboard/{collectionId}", h.Leaderboard).Methods("GET")
	s.Handle("/me", auth.JWTMiddleware(jwtSecret)(http.HandlerFunc(h.Mine))).Methods("GET")
}

// Leaderboard serves the cached board when there is one and rebuilds it from
// the database otherwise.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	collectionID := mux.Vars(r)["collectionId"]
	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var entries []models.LeaderboardEntry
	if h.cache != nil {
		cached, err := h.cache.GetLeaderboard(r.Context(), collectionID, limit)
		if err != nil {
			log.Printf("Error reading cached leaderboard for %s: %v", collectionID, err)
		}
		if len(cached) > 0 {
			entries = h.withUsernames(cached)
		}
	}

	if entries == nil {
		fromDB, err := h.repo.Leaderboard(r.Context(), collectionID, limit)
		if err != nil {
			http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		entries = fromDB
		if h.cache != nil && len(entries) > 0 && len(entries) < limit {
			// The whole board fit, so it can be cached as is.
			if err := h.cache.SetLeaderboard(r.Context(), collectionID, entries); err != nil {
				log.Printf("Error caching leaderboard for %s: %v", collectionID, err)
			}
		}
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) withUsernames(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	if h.users == nil {
		return entries
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	names, err := h.users.Usernames(ids)
	if err != nil {
		log.Printf("Error looking up usernames: %v", err)
		return entries
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return entries
}

type myScore struct {
	models.CompletedQuiz
	Grade string `json:"grade"`
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	quizzes, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load scores", http.StatusInternalServerError)
		return
	}
	out := make([]myScore, len(quizzes))
	for i, q := range quizzes {
		out[i] = myScore{CompletedQuiz: q, Grade: LetterGrade(q.Percentage)}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
