// backend/internal/collection/handler.go
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"quizzems/internal/auth"
	"quizzems/internal/models"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Invalidator drops cached copies of a collection.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

type Handler struct {
	repo     *Repository
	cache    Invalidator
	validate *validator.Validate
}

// NewHandler serves collections from repo. cache may be nil.
func NewHandler(repo *Repository, cache Invalidator) *Handler {
	return &Handler{repo: repo, cache: cache, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *mux.Router, jwtSecret string) {
	c := r.PathPrefix("/collections").Subrouter()
	c.HandleFunc("/latest", h.Latest).Methods("GET")
	c.HandleFunc("/random/{limit:[0-9]+}", h.Random).Methods("GET")
	c.HandleFunc("/user/{authorId}", h.ByAuthor).Methods("GET")
	c.HandleFunc("/{id}", h.Get).Methods("GET")

	requireAuth := auth.JWTMiddleware(jwtSecret)
	c.Handle("", requireAuth(http.HandlerFunc(h.Create))).Methods("POST")
	c.Handle("/{id}", requireAuth(http.HandlerFunc(h.Delete))).Methods("DELETE")
}

type ItemRequest struct {
	Question     string   `json:"question" validate:"required_without_all=Image Audio"`
	Image        string   `json:"image" validate:"omitempty,url"`
	Audio        string   `json:"audio" validate:"omitempty,url"`
	Answer       string   `json:"answer" validate:"required_without=Answers"`
	Answers      []string `json:"answers" validate:"omitempty,dive,required"`
	Options      []string `json:"options" validate:"omitempty,dive,required"`
	QuestionType string   `json:"questionType" validate:"omitempty,oneof=image text audio"`
	AnswerType   string   `json:"answerType" validate:"omitempty,oneof=single multiplechoice multianswer"`
}

type CreateRequest struct {
	Category    string        `json:"category" validate:"required,max=200"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail" validate:"omitempty,url"`
	Shuffle     bool          `json:"shuffle"`
	Private     bool          `json:"private"`
	Items       []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (req CreateRequest) toModel(authorID string) *models.Collection {
	coll := &models.Collection{
		AuthorID:    authorID,
		Category:    req.Category,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		Slug:        auth.Slugify(req.Category),
		Shuffle:     req.Shuffle,
		Private:     req.Private,
		Items:       make([]models.Item, 0, len(req.Items)),
	}
	for _, it := range req.Items {
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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	coll := req.toModel(userID)
	if err := h.repo.Create(r.Context(), coll); err != nil {
		http.Error(w, "Failed to create collection", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, coll)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	coll, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Collection not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load collection", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, coll.ToRaw())
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	colls, err := h.repo.Latest(r.Context(), clampLimit(limit))
	if err != nil {
		http.Error(w, "Failed to list collections", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, colls)
}

func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(mux.Vars(r)["limit"])
	if err != nil || limit <= 0 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	colls, err := h.repo.Random(r.Context(), clampLimit(limit))
	if err != nil {
		http.Error(w, "Failed to list collections", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, colls)
}

func (h *Handler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	colls, err := h.repo.ByAuthor(r.Context(), mux.Vars(r)["authorId"])
	if err != nil {
		http.Error(w, "Failed to list collections", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, colls)
}

// Delete removes a collection. Only its author may do so.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := auth.UserIDFromContext(r.Context())

	coll, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Collection not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load collection", http.StatusInternalServerError)
		return
	}
	if coll.AuthorID != userID {
		log.Printf("User %s tried to delete collection %s owned by %s", userID, id, coll.AuthorID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete collection", http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func clampLimit(n int) int {
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
