// backend/internal/quiz/session.go
package quiz

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"quizzems/internal/matcher"
	"quizzems/internal/models"
)

// CollectionProvider fetches a collection with its items. A nil collection
// and an error both mean the collection could not be found.
type CollectionProvider interface {
	FetchByID(ctx context.Context, id string) (*models.RawCollection, error)
}

// ScoreReporter persists the percentage of a completed quiz.
type ScoreReporter interface {
	Report(ctx context.Context, userID, collectionID string, percentage int, token string) error
}

// Notifier is a one-way sink for user facing messages.
type Notifier interface {
	Notify(kind models.ToastKind, message string)
}

const (
	DefaultBatchWindow   = 50 * time.Millisecond
	DefaultReportTimeout = 5 * time.Second
)

type Option func(*Session)

// WithThreshold sets the similarity needed for a free-text answer to count.
func WithThreshold(t float64) Option {
	return func(s *Session) { s.threshold = t }
}

// WithBatchWindow sets how long card updates are coalesced. Zero applies
// every update immediately.
func WithBatchWindow(d time.Duration) Option {
	return func(s *Session) { s.batchWindow = d }
}

func WithReportTimeout(d time.Duration) Option {
	return func(s *Session) { s.reportTimeout = d }
}

func WithMode(m Mode) Option {
	return func(s *Session) {
		if m.Valid() {
			s.state.Mode = m
		}
	}
}

func WithPractice(practice bool) Option {
	return func(s *Session) { s.state.IsPractice = practice }
}

// PartyLog is the ordered list of shuffle seeds applied to a party.
type PartyLog interface {
	Seeds() []uint32
}

// WithParty joins the session to a party. A shuffle on load uses the party
// seed, and every seed in log is replayed after each load.
func WithParty(code string, seed uint32, log PartyLog) Option {
	return func(s *Session) {
		s.state.PartyCode = code
		s.partySeed = &seed
		s.partyLog = log
	}
}

func withMember(id string) Option {
	return func(s *Session) { s.member = id }
}

// WithOwner ties the session to a signed in user.
func WithOwner(userID string) Option {
	return func(s *Session) { s.owner = userID }
}

type noopNotifier struct{}

func (noopNotifier) Notify(models.ToastKind, string) {}

// Session holds one user's attempt at a collection.
type Session struct {
	ID string

	provider CollectionProvider
	reporter ScoreReporter
	notifier Notifier

	threshold     float64
	batchWindow   time.Duration
	reportTimeout time.Duration
	partySeed     *uint32
	partyLog      PartyLog
	owner         string
	member        string

	mu           sync.Mutex
	state        State
	lastID       string
	lastActive   time.Time
	partyApplied int
	pending    map[int]CardUpdate
	batchTimer *time.Timer
	memo       statsMemo
	observers  []func(State)
}

func NewSession(id string, provider CollectionProvider, reporter ScoreReporter, notifier Notifier, opts ...Option) *Session {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &Session{
		ID:            id,
		provider:      provider,
		reporter:      reporter,
		notifier:      notifier,
		threshold:     matcher.DefaultThreshold,
		batchWindow:   DefaultBatchWindow,
		reportTimeout: DefaultReportTimeout,
		pending:       make(map[int]CardUpdate),
		state:         State{Mode: ModeFillInTheBlank},
		lastActive:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every applied change.
// fn runs outside the session lock.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Session) Threshold() float64 { return s.threshold }

// MemberID names the session inside its party room.
func (s *Session) MemberID() string { return s.member }

// Owner is the user the session belongs to, empty for anonymous sessions.
func (s *Session) Owner() string { return s.owner }

// LastActive is when the session was last read or changed.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) PartyCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PartyCode
}

// apply flushes pending card updates, runs fn under the lock and publishes
// the new state to observers if anything changed.
func (s *Session) apply(fn func() (bool, error)) error {
	s.mu.Lock()
	s.lastActive = time.Now()
	changed := s.flushLocked()
	mutated, err := fn()
	changed = changed || mutated

	var snap State
	var observers []func(State)
	if changed {
		snap = s.snapshotLocked()
		observers = slices.Clone(s.observers)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
	return err
}

func (s *Session) flushLocked() bool {
	if s.batchTimer != nil {
		s.batchTimer.Stop()
		s.batchTimer = nil
	}
	if len(s.pending) == 0 {
		return false
	}
	cards := slices.Clone(s.state.Cards)
	for idx, upd := range s.pending {
		if idx < len(cards) {
			cards[idx] = upd.apply(cards[idx])
		}
	}
	s.state.Cards = cards
	clear(s.pending)
	return true
}

func (s *Session) flushFromTimer() {
	_ = s.apply(func() (bool, error) { return false, nil })
}

func (s *Session) snapshotLocked() State {
	st := s.state
	st.Cards = make([]Card, len(s.state.Cards))
	for i, c := range s.state.Cards {
		st.Cards[i] = c.clone()
	}
	if s.state.Collection != nil {
		coll := *s.state.Collection
		st.Collection = &coll
	}
	st.Phase = s.state.phase()
	return st
}

// Snapshot returns a deep copy of the current state, pending updates applied.
func (s *Session) Snapshot() State {
	var snap State
	_ = s.apply(func() (bool, error) {
		snap = s.snapshotLocked()
		return false, nil
	})
	return snap
}

// Stats returns the derived statistics for the current cards.
func (s *Session) Stats() Stats {
	var st Stats
	_ = s.apply(func() (bool, error) {
		st = s.memo.get(s.state.Cards, s.threshold)
		return false, nil
	})
	return st
}

// LoadCollection fetches the collection and replaces the cards. It is a no-op
// while an attempt is under way, i.e. once any card has been revealed.
func (s *Session) LoadCollection(ctx context.Context, id string) error {
	var skip bool
	var loadErr error
	_ = s.apply(func() (bool, error) {
		if anyRevealed(s.state.Cards) {
			skip = true
			return false, nil
		}
		s.lastID = id
		if id == "" {
			loadErr = fmt.Errorf("%w: no collection id provided", ErrCollectionNotFound)
			s.state.IsLoading = false
			s.state.LoadingError = "No collection ID provided"
			return true, nil
		}
		if s.provider == nil {
			loadErr = fmt.Errorf("%w: no collection provider", ErrInvalidState)
			s.state.LoadingError = loadErr.Error()
			return true, nil
		}
		s.state.IsLoading = true
		s.state.LoadingError = ""
		return true, nil
	})
	if skip {
		log.Printf("Session %s: attempt in progress, ignoring load of collection %s", s.ID, id)
		return nil
	}
	if loadErr != nil {
		s.notifier.Notify(models.ToastError, s.Snapshot().LoadingError)
		return loadErr
	}

	log.Printf("Session %s: fetching collection %s", s.ID, id)
	raw, err := s.provider.FetchByID(ctx, id)
	if err != nil || raw == nil {
		if err != nil {
			log.Printf("Session %s: error fetching collection %s: %v", s.ID, id, err)
		}
		loadErr = fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
		_ = s.apply(func() (bool, error) {
			s.state.IsLoading = false
			s.state.LoadingError = "Collection not found"
			return true, nil
		})
		s.notifier.Notify(models.ToastError, "Failed to fetch collection: Collection not found")
		return loadErr
	}

	if len(raw.Items) == 0 {
		log.Printf("Session %s: %v: %s", s.ID, ErrEmptyCollection, id)
		s.notifier.Notify(models.ToastWarning, "This collection has no items")
	}

	cards := MapCards(raw.Items)
	_ = s.apply(func() (bool, error) {
		if anyRevealed(s.state.Cards) {
			// An attempt started while the fetch was in flight; it wins.
			skip = true
			s.state.IsLoading = false
			return true, nil
		}
		if raw.Shuffle {
			cards = shuffleCards(cards, s.partySeed)
			s.state.ShuffleTrigger++
		}
		s.state.Cards = cards
		s.partyApplied = 0
		s.replayPartyLocked()
		cards = s.state.Cards
		author := raw.Author
		if author == "" {
			author = "Unknown"
		}
		s.state.Collection = &Collection{
			ID:            id,
			Name:          raw.Category,
			Description:   raw.Description,
			Thumbnail:     raw.Thumbnail,
			Author:        author,
			AuthorSlug:    raw.AuthorSlug,
			ShuffleOnLoad: raw.Shuffle,
		}
		s.state.IsLoading = false
		s.state.LoadingError = ""
		s.state.IsComplete = false
		return true, nil
	})
	if skip {
		log.Printf("Session %s: attempt started during fetch, dropping collection %s", s.ID, id)
		return nil
	}
	log.Printf("Session %s: loaded %d cards from collection %s", s.ID, len(cards), id)
	return nil
}

// SyncParty applies the party seeds this session has not seen yet.
func (s *Session) SyncParty() {
	_ = s.apply(func() (bool, error) {
		return s.replayPartyLocked(), nil
	})
}

func (s *Session) replayPartyLocked() bool {
	if s.partyLog == nil {
		return false
	}
	seeds := s.partyLog.Seeds()
	if s.partyApplied >= len(seeds) {
		return false
	}
	for _, seed := range seeds[s.partyApplied:] {
		s.state.Cards = shuffleCards(s.state.Cards, &seed)
		s.state.ShuffleTrigger++
	}
	s.partyApplied = len(seeds)
	return true
}

// UpdateCard merges upd into the card at index. Updates are coalesced for the
// batch window; any other operation or read sees them applied.
func (s *Session) UpdateCard(index int, upd CardUpdate) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.state.Cards) {
		s.mu.Unlock()
		return fmt.Errorf("%w: card index %d out of range", ErrInvalidState, index)
	}
	if upd.empty() {
		s.mu.Unlock()
		return nil
	}
	s.lastActive = time.Now()
	s.pending[index] = s.pending[index].merge(upd)
	if s.batchWindow > 0 {
		if s.batchTimer == nil {
			s.batchTimer = time.AfterFunc(s.batchWindow, s.flushFromTimer)
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.flushFromTimer()
	return nil
}

// RevealCards reveals every card and grades those not graded externally.
// Calling it again regrades from the current answers.
func (s *Session) RevealCards() error {
	return s.apply(func() (bool, error) {
		if s.state.Collection == nil || len(s.state.Cards) == 0 {
			return false, fmt.Errorf("%w: no cards to reveal", ErrInvalidState)
		}
		cards := make([]Card, len(s.state.Cards))
		for i, c := range s.state.Cards {
			c.Revealed = true
			if !c.ExternallyGraded {
				ok := grade(c, s.threshold)
				c.IsCorrect = &ok
			}
			cards[i] = c
		}
		s.state.Cards = cards
		return true, nil
	})
}

// ShuffleCards reorders the cards. A seed makes the order reproducible.
func (s *Session) ShuffleCards(seed *uint32) {
	_ = s.apply(func() (bool, error) {
		s.state.Cards = shuffleCards(s.state.Cards, seed)
		s.state.ShuffleTrigger++
		return true, nil
	})
}

// ResetCards is the visual reset: reveals, hiding and scaling are cleared.
func (s *Session) ResetCards() {
	_ = s.apply(func() (bool, error) {
		s.state.Cards = mapEach(s.state.Cards, func(c Card) Card {
			c = c.unreveal()
			c.Hidden = false
			c.Scale = 1
			return c
		})
		return true, nil
	})
}

// ResetCardsToInitialState restarts the attempt from scratch.
func (s *Session) ResetCardsToInitialState() {
	_ = s.apply(func() (bool, error) {
		s.resetLocked()
		return true, nil
	})
}

func (s *Session) resetLocked() {
	s.state.Cards = mapEach(s.state.Cards, func(c Card) Card {
		c = c.unreveal()
		c.Hidden = false
		c.Scale = 1
		c.UserAnswer = ""
		return c
	})
	s.state.IsComplete = false
}

// SetMode switches modes. Grading differs between modes, so every reveal is
// cleared.
func (s *Session) SetMode(mode Mode) error {
	return s.apply(func() (bool, error) {
		if !mode.Valid() {
			return false, fmt.Errorf("%w: unknown mode %q", ErrInvalidState, mode)
		}
		s.state.Mode = mode
		s.state.Cards = mapEach(s.state.Cards, Card.unreveal)
		return true, nil
	})
}

func (s *Session) SetPractice(practice bool) {
	_ = s.apply(func() (bool, error) {
		s.state.IsPractice = practice
		return true, nil
	})
}

// Completion is the outcome of CompleteQuiz.
type Completion struct {
	Percentage int   `json:"percentage"`
	Stats      Stats `json:"stats"`
	Reported   bool  `json:"reported"`
	ReportErr  error `json:"-"`
}

// CompleteQuiz marks the quiz complete and, for signed in non-practice
// sessions, reports the score. Reporting is best effort: it is bounded by the
// report timeout and its failure never undoes completion.
func (s *Session) CompleteQuiz(userID, token string) Completion {
	var res Completion
	var collectionID string
	var practice bool
	_ = s.apply(func() (bool, error) {
		s.state.IsComplete = true
		res.Stats = s.memo.get(s.state.Cards, s.threshold)
		res.Percentage = res.Stats.Percentage
		if s.state.Collection != nil {
			collectionID = s.state.Collection.ID
		}
		practice = s.state.IsPractice
		return true, nil
	})

	if userID == "" || token == "" || collectionID == "" || practice || s.reporter == nil {
		return res
	}

	res.ReportErr = s.report(userID, collectionID, res.Percentage, token)
	res.Reported = res.ReportErr == nil
	return res
}

func (s *Session) report(userID, collectionID string, percentage int, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.reportTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.reporter.Report(ctx, userID, collectionID, percentage, token)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("Session %s: error reporting score for user %s: %v", s.ID, userID, err)
			return fmt.Errorf("%w: %v", ErrReportFailure, err)
		}
		log.Printf("Session %s: reported %d%% for user %s on collection %s", s.ID, percentage, userID, collectionID)
		return nil
	case <-ctx.Done():
		log.Printf("Session %s: score report for user %s timed out after %s", s.ID, userID, s.reportTimeout)
		return ErrReportTimeout
	}
}

// Retry discards all session state and loads the last requested collection
// again. Mode, practice flag and party membership survive.
func (s *Session) Retry(ctx context.Context) error {
	var id string
	_ = s.apply(func() (bool, error) {
		clear(s.pending)
		id = s.lastID
		s.state = State{
			Mode:       s.state.Mode,
			IsPractice: s.state.IsPractice,
			PartyCode:  s.state.PartyCode,
		}
		s.memo = statsMemo{}
		return true, nil
	})
	return s.LoadCollection(ctx, id)
}

// Close stops any pending batch timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchTimer != nil {
		s.batchTimer.Stop()
		s.batchTimer = nil
	}
}

func anyRevealed(cards []Card) bool {
	for _, c := range cards {
		if c.Revealed {
			return true
		}
	}
	return false
}

func mapEach(cards []Card, fn func(Card) Card) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = fn(c)
	}
	return out
}
