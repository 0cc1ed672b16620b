// backend/internal/quiz/service.go
package quiz

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizzems/internal/notify"
)

// Settings are the per-server defaults applied to every new session.
type Settings struct {
	Threshold float64
	// BatchWindow overrides DefaultBatchWindow when set; zero applies card
	// updates immediately.
	BatchWindow   *time.Duration
	ReportTimeout time.Duration
	// IdleTimeout is how long an untouched session lives. Zero keeps
	// sessions until they are deleted.
	IdleTimeout time.Duration
}

type CreateRequest struct {
	CollectionID string   `json:"collectionId" validate:"required"`
	Mode         Mode     `json:"mode" validate:"omitempty,oneof=fill_in_the_blank multiple_choice flashcard"`
	Practice     bool     `json:"practice"`
	Party        bool     `json:"party"`
	PartyCode    string   `json:"partyCode" validate:"omitempty,len=6,alphanum"`
	Threshold    *float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
	// Owner is the signed in user creating the session.
	Owner string `json:"-"`
}

// StatsMessage is broadcast to a party room whenever a member's session
// changes. Members are named by their member id, never their session id.
type StatsMessage struct {
	MemberID string `json:"memberId"`
	Phase    Phase  `json:"phase"`
	Stats    Stats  `json:"stats"`
}

// SessionStateMessage is the "session_state" event of a party member.
type SessionStateMessage struct {
	MemberID       string `json:"memberId"`
	Phase          Phase  `json:"phase"`
	Mode           Mode   `json:"mode"`
	IsLoading      bool   `json:"isLoading"`
	IsComplete     bool   `json:"isComplete"`
	ShuffleTrigger int    `json:"shuffleTrigger"`
	Cards          int    `json:"cards"`
}

type ShuffleMessage struct {
	Seed           uint32 `json:"seed"`
	ShuffleTrigger int    `json:"shuffleTrigger"`
}

// party is a group of sessions kept in the same card order. Every member
// replays the shuffle history on top of the load seed.
type party struct {
	seed     uint32
	sessions map[string]*Session

	mu      sync.Mutex
	history []uint32
}

func (p *party) Seeds() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

func (p *party) record(seed uint32) {
	p.mu.Lock()
	p.history = append(p.history, seed)
	p.mu.Unlock()
}

// Service owns the live sessions of this server.
type Service struct {
	provider CollectionProvider
	reporter ScoreReporter
	hub      notify.Broadcaster
	settings Settings

	mu       sync.RWMutex
	sessions map[string]*Session
	parties  map[string]*party
}

func NewService(provider CollectionProvider, reporter ScoreReporter, hub notify.Broadcaster, settings Settings) *Service {
	return &Service{
		provider: provider,
		reporter: reporter,
		hub:      hub,
		settings: settings,
		sessions: make(map[string]*Session),
		parties:  make(map[string]*party),
	}
}

// Create starts a session and loads its collection. The session is kept even
// when loading fails so the caller can retry.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	id := uuid.NewString()

	threshold := s.settings.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	opts := []Option{WithMode(req.Mode), WithPractice(req.Practice), WithOwner(req.Owner)}
	if threshold > 0 {
		opts = append(opts, WithThreshold(threshold))
	}
	if s.settings.BatchWindow != nil {
		opts = append(opts, WithBatchWindow(*s.settings.BatchWindow))
	}
	if s.settings.ReportTimeout > 0 {
		opts = append(opts, WithReportTimeout(s.settings.ReportTimeout))
	}

	s.mu.Lock()
	code := req.PartyCode
	var p *party
	switch {
	case code != "":
		var ok bool
		p, ok = s.parties[code]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrPartyNotFound, code)
		}
	case req.Party:
		code = s.newPartyCodeLocked()
		p = &party{seed: rand.Uint32(), sessions: make(map[string]*Session)}
		s.parties[code] = p
		log.Printf("Created party %s", code)
	}

	notifier := notify.Multi{notify.Log{Session: id}}
	member := ""
	if p != nil {
		member = uuid.NewString()
		opts = append(opts, WithParty(code, p.seed, p), withMember(member))
		notifier = append(notifier, notify.Room{Hub: s.hub, Code: code, Member: member})
	}

	sess := NewSession(id, s.provider, s.reporter, notifier, opts...)
	s.sessions[id] = sess
	if p != nil {
		p.sessions[id] = sess
	}
	s.mu.Unlock()

	if p != nil && s.hub != nil {
		sess.Subscribe(func(st State) {
			s.hub.BroadcastMessage(code, "session_state", SessionStateMessage{
				MemberID:       member,
				Phase:          st.Phase,
				Mode:           st.Mode,
				IsLoading:      st.IsLoading,
				IsComplete:     st.IsComplete,
				ShuffleTrigger: st.ShuffleTrigger,
				Cards:          len(st.Cards),
			})
			s.hub.BroadcastMessage(code, "stats", StatsMessage{
				MemberID: member,
				Phase:    st.Phase,
				Stats:    ComputeStats(st.Cards, threshold),
			})
		})
	}

	log.Printf("Created session %s for collection %s", id, req.CollectionID)
	if err := sess.LoadCollection(ctx, req.CollectionID); err != nil {
		return sess, err
	}
	return sess, nil
}

// JoinParty creates a session inside an open party.
func (s *Service) JoinParty(ctx context.Context, code string, req CreateRequest) (*Session, error) {
	req.PartyCode = code
	req.Party = false
	return s.Create(ctx, req)
}

func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// GetFor returns the session if userID may use it. Anonymous sessions are
// open to anyone holding their id.
func (s *Service) GetFor(id, userID string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if owner := sess.Owner(); owner != "" && owner != userID {
		return nil, fmt.Errorf("%w: session %s", ErrForbidden, id)
	}
	return sess, nil
}

// Delete discards a session; in-progress attempts are not persisted.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deleteLocked(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	log.Printf("Deleted session %s", id)
	return nil
}

func (s *Service) deleteLocked(id string) bool {
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Close()
	delete(s.sessions, id)

	if code := sess.PartyCode(); code != "" {
		if p, ok := s.parties[code]; ok {
			delete(p.sessions, id)
			if len(p.sessions) == 0 {
				delete(s.parties, code)
				log.Printf("Party %s closed", code)
			}
		}
	}
	return true
}

// EvictIdle deletes every session not touched within maxIdle of now and
// returns how many went.
func (s *Service) EvictIdle(now time.Time, maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive()) > maxIdle && s.deleteLocked(id) {
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("Evicted %d idle sessions", evicted)
	}
	return evicted
}

// RunJanitor evicts idle sessions until ctx is done. It returns at once when
// no idle timeout is configured.
func (s *Service) RunJanitor(ctx context.Context) {
	maxIdle := s.settings.IdleTimeout
	if maxIdle <= 0 {
		return
	}
	interval := maxIdle / 4
	if interval <= 0 {
		interval = maxIdle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.EvictIdle(now, maxIdle)
		}
	}
}

// PartyExists reports whether a party with this code is open.
func (s *Service) PartyExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.parties[code]
	return ok
}

// Shuffle shuffles one session. Inside a party every member is shuffled with
// the same seed so all of them keep seeing the same order.
func (s *Service) Shuffle(id string, seed *uint32) (State, error) {
	sess, err := s.Get(id)
	if err != nil {
		return State{}, err
	}
	code := sess.PartyCode()
	if code == "" {
		sess.ShuffleCards(seed)
		return sess.Snapshot(), nil
	}
	if _, err := s.ShuffleParty(code, seed); err != nil {
		return State{}, err
	}
	return sess.Snapshot(), nil
}

// ShuffleParty records one seed in the party history, brings every member
// up to date and tells the room about it. Members still loading pick the
// seed up when their load finishes.
func (s *Service) ShuffleParty(code string, seed *uint32) (uint32, error) {
	s.mu.RLock()
	p, ok := s.parties[code]
	if !ok {
		s.mu.RUnlock()
		return 0, fmt.Errorf("%w: %s", ErrPartyNotFound, code)
	}
	if seed == nil {
		v := rand.Uint32()
		seed = &v
	}
	p.record(*seed)
	members := make([]*Session, 0, len(p.sessions))
	for _, sess := range p.sessions {
		members = append(members, sess)
	}
	s.mu.RUnlock()

	trigger := 0
	for _, sess := range members {
		sess.SyncParty()
		trigger = sess.Snapshot().ShuffleTrigger
	}
	log.Printf("Shuffled party %s (%d sessions) with seed %d", code, len(members), *seed)

	if s.hub != nil {
		s.hub.BroadcastMessage(code, "shuffle", ShuffleMessage{Seed: *seed, ShuffleTrigger: trigger})
	}
	return *seed, nil
}

const partyCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s *Service) newPartyCodeLocked() string {
	for {
		code := generatePartyCode()
		if _, taken := s.parties[code]; !taken {
			return code
		}
	}
}

func generatePartyCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = partyCodeCharset[rand.IntN(len(partyCodeCharset))]
	}
	return string(code)
}
