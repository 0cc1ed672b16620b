// backend/internal/quiz/handler.go
package quiz

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"quizzems/internal/auth"
	"quizzems/internal/score"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// RegisterRoutes mounts the session routes on r. Every route accepts an
// optional bearer token; sessions created with one only answer to that user.
func (h *Handler) RegisterRoutes(r *mux.Router, jwtSecret string) {
	s := r.PathPrefix("/sessions").Subrouter()
	s.Use(auth.OptionalJWT(jwtSecret))
	s.HandleFunc("", h.CreateSession).Methods("POST")
	s.HandleFunc("/party/{code}/join", h.JoinParty).Methods("POST")
	s.HandleFunc("/{id}", h.GetSession).Methods("GET")
	s.HandleFunc("/{id}", h.DeleteSession).Methods("DELETE")
	s.HandleFunc("/{id}/cards/{index:[0-9]+}", h.UpdateCard).Methods("PATCH")
	s.HandleFunc("/{id}/reveal", h.Reveal).Methods("POST")
	s.HandleFunc("/{id}/shuffle", h.Shuffle).Methods("POST")
	s.HandleFunc("/{id}/reset", h.Reset).Methods("POST")
	s.HandleFunc("/{id}/restart", h.Restart).Methods("POST")
	s.HandleFunc("/{id}/mode", h.SetMode).Methods("PUT")
	s.HandleFunc("/{id}/practice", h.SetPractice).Methods("PUT")
	s.HandleFunc("/{id}/complete", h.Complete).Methods("POST")
	s.HandleFunc("/{id}/retry", h.Retry).Methods("POST")
	s.HandleFunc("/{id}/stats", h.GetStats).Methods("GET")
}

type sessionResponse struct {
	ID       string `json:"id"`
	MemberID string `json:"memberId,omitempty"`
	State    State  `json:"state"`
	Stats    Stats  `json:"stats"`
}

type ShuffleRequest struct {
	Seed *uint32 `json:"seed"`
}

type ModeRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=fill_in_the_blank multiple_choice flashcard"`
}

type PracticeRequest struct {
	Practice bool `json:"practice"`
}

type CompleteResponse struct {
	Completion
	Grade       string `json:"grade"`
	Message     string `json:"message"`
	Phrase      string `json:"phrase"`
	ReportError string `json:"reportError,omitempty"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req.Owner = auth.UserIDFromContext(r.Context())
	sess, err := h.service.Create(r.Context(), req)
	h.writeCreated(w, sess, err)
}

func (h *Handler) JoinParty(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req.Owner = auth.UserIDFromContext(r.Context())
	sess, err := h.service.JoinParty(r.Context(), mux.Vars(r)["code"], req)
	h.writeCreated(w, sess, err)
}

func (h *Handler) writeCreated(w http.ResponseWriter, sess *Session, err error) {
	if err != nil && sess == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		// The session exists in its error phase so the client can retry.
		log.Printf("Session %s created with load error: %v", sess.ID, err)
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(sess.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "Invalid card index", http.StatusBadRequest)
		return
	}

	var upd CardUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(upd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := sess.UpdateCard(index, upd); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.RevealCards(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) Shuffle(w http.ResponseWriter, r *http.Request) {
	var req ShuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Shuffle(sess.ID, req.Seed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.ResetCards()
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.ResetCardsToInitialState()
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.SetMode(req.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) SetPractice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PracticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sess.SetPractice(req.Practice)
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res := sess.CompleteQuiz(auth.UserIDFromContext(r.Context()), auth.TokenFromContext(r.Context()))

	resp := CompleteResponse{
		Completion: res,
		Grade:      score.LetterGrade(res.Percentage),
		Message:    score.ScoreMessage(res.Percentage),
		Phrase:     score.Phrase(res.Percentage, nil),
	}
	if res.ReportErr != nil {
		resp.ReportError = res.ReportErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Retry(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Stats())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.service.GetFor(mux.Vars(r)["id"], auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func newSessionResponse(sess *Session) sessionResponse {
	return sessionResponse{ID: sess.ID, MemberID: sess.MemberID(), State: sess.Snapshot(), Stats: sess.Stats()}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPartyNotFound), errors.Is(err, ErrCollectionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
