package quiz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizzems/internal/models"
)

type broadcast struct {
	room, messageType string
	data              interface{}
}

type fakeHub struct {
	mu       sync.Mutex
	messages []broadcast
}

func (h *fakeHub) BroadcastMessage(room, messageType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, broadcast{room, messageType, data})
}

func (h *fakeHub) ofType(messageType string) []broadcast {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []broadcast
	for _, m := range h.messages {
		if m.messageType == messageType {
			out = append(out, m)
		}
	}
	return out
}

func newTestService(hub *fakeHub) (*Service, *fakeReporter) {
	reporter := &fakeReporter{}
	coll := capitals()
	coll.Shuffle = true
	svc := NewService(newProvider(coll), reporter, hub, Settings{Threshold: 1})
	return svc, reporter
}

func TestServiceCreateGetDelete(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Mode: ModeFlashcard})
	require.NoError(t, err)
	assert.Equal(t, ModeFlashcard, sess.Snapshot().Mode)

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.Delete(sess.ID))
	_, err = svc.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Delete(sess.ID), ErrSessionNotFound)
}

func TestServiceCreateKeepsFailedSession(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})

	sess, err := svc.Create(context.Background(), CreateRequest{CollectionID: "missing"})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	require.NotNil(t, sess)
	assert.Equal(t, PhaseError, sess.Snapshot().Phase)

	_, err = svc.Get(sess.ID)
	assert.NoError(t, err)
}

func TestServiceThresholdOverride(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	loose := 0.8
	sess, err := svc.Create(context.Background(), CreateRequest{CollectionID: "capitals", Threshold: &loose})
	require.NoError(t, err)
	assert.Equal(t, 0.8, sess.Threshold())
}

func TestPartyJoinSharesOrder(t *testing.T) {
	hub := &fakeHub{}
	svc, _ := newTestService(hub)
	ctx := context.Background()

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	code := host.PartyCode()
	require.Len(t, code, 6)
	assert.True(t, svc.PartyExists(code))

	seed := uint32(5)
	_, err = svc.ShuffleParty(code, &seed)
	require.NoError(t, err)

	guest, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", PartyCode: code})
	require.NoError(t, err)

	assert.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards),
		"a late joiner replays the party shuffles")

	_, err = svc.Shuffle(guest.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards))

	shuffles := hub.ofType("shuffle")
	require.Len(t, shuffles, 2)
	assert.Equal(t, code, shuffles[0].room)
	assert.Equal(t, uint32(5), shuffles[0].data.(ShuffleMessage).Seed)
	assert.NotEmpty(t, hub.ofType("stats"))
}

func TestPartyErrors(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", PartyCode: "NOPE00"})
	assert.ErrorIs(t, err, ErrPartyNotFound)

	_, err = svc.ShuffleParty("NOPE00", nil)
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestPartyClosesWhenEmpty(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	code := host.PartyCode()
	guest, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", PartyCode: code})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(host.ID))
	assert.True(t, svc.PartyExists(code))
	require.NoError(t, svc.Delete(guest.ID))
	assert.False(t, svc.PartyExists(code))
}

func TestPartyToastsReachRoom(t *testing.T) {
	hub := &fakeHub{}
	svc, _ := newTestService(hub)

	sess, err := svc.Create(context.Background(), CreateRequest{CollectionID: "missing", Party: true})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	require.NotNil(t, sess)

	toasts := hub.ofType("toast")
	require.NotEmpty(t, toasts)
	assert.Equal(t, sess.PartyCode(), toasts[0].room)
}

func TestGeneratePartyCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := generatePartyCode()
		require.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, partyCodeCharset, string(r))
		}
	}
}

// gatedProvider holds fetches while a gate is set.
type gatedProvider struct {
	next *fakeProvider

	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (p *gatedProvider) FetchByID(ctx context.Context, id string) (*models.RawCollection, error) {
	p.mu.Lock()
	gate, entered := p.gate, p.entered
	p.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return p.next.FetchByID(ctx, id)
}

func (p *gatedProvider) hold() (entered <-chan struct{}, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	gate := p.gate
	return p.entered, func() {
		p.mu.Lock()
		p.gate = nil
		p.mu.Unlock()
		close(gate)
	}
}

func TestPartyRetryKeepsOrder(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	guest, err := svc.JoinParty(ctx, host.PartyCode(), CreateRequest{CollectionID: "capitals"})
	require.NoError(t, err)

	seed := uint32(7)
	_, err = svc.ShuffleParty(host.PartyCode(), &seed)
	require.NoError(t, err)
	require.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards))

	require.NoError(t, guest.Retry(ctx))
	assert.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards),
		"a retried member replays the party shuffles")

	seed = 11
	_, err = svc.ShuffleParty(host.PartyCode(), &seed)
	require.NoError(t, err)
	assert.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards))
}

func TestPartyShuffleWhileJoinerLoads(t *testing.T) {
	coll := capitals()
	coll.Shuffle = true
	provider := &gatedProvider{next: newProvider(coll)}
	svc := NewService(provider, &fakeReporter{}, &fakeHub{}, Settings{Threshold: 1})
	ctx := context.Background()

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	code := host.PartyCode()

	entered, release := provider.hold()
	joined := make(chan *Session, 1)
	go func() {
		guest, err := svc.JoinParty(ctx, code, CreateRequest{CollectionID: "capitals"})
		assert.NoError(t, err)
		joined <- guest
	}()

	<-entered
	seed := uint32(9)
	_, err = svc.ShuffleParty(code, &seed)
	require.NoError(t, err)
	release()

	guest := <-joined
	assert.Equal(t, cardIDs(host.Snapshot().Cards), cardIDs(guest.Snapshot().Cards),
		"a shuffle during the joiner's fetch is applied once the fetch lands")
}

func TestJoinPartyBroadcastsMemberState(t *testing.T) {
	hub := &fakeHub{}
	svc, _ := newTestService(hub)
	ctx := context.Background()

	_, err := svc.JoinParty(ctx, "NOPE00", CreateRequest{CollectionID: "capitals"})
	assert.ErrorIs(t, err, ErrPartyNotFound)

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	guest, err := svc.JoinParty(ctx, host.PartyCode(), CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	assert.Equal(t, host.PartyCode(), guest.PartyCode(), "joining never opens a second party")
	require.NotEmpty(t, guest.MemberID())
	assert.NotEqual(t, guest.ID, guest.MemberID())

	states := hub.ofType("session_state")
	require.NotEmpty(t, states)
	last := states[len(states)-1].data.(SessionStateMessage)
	assert.Equal(t, guest.MemberID(), last.MemberID)
	assert.Equal(t, PhaseReady, last.Phase)
	assert.Equal(t, 4, last.Cards)

	for _, m := range hub.ofType("stats") {
		assert.NotEqual(t, host.ID, m.data.(StatsMessage).MemberID)
		assert.NotEqual(t, guest.ID, m.data.(StatsMessage).MemberID)
	}
}

func TestGetForChecksOwner(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	owned, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Owner: "user-1"})
	require.NoError(t, err)
	anon, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals"})
	require.NoError(t, err)

	_, err = svc.GetFor(owned.ID, "user-1")
	assert.NoError(t, err)
	_, err = svc.GetFor(owned.ID, "user-2")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetFor(owned.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetFor(anon.ID, "user-2")
	assert.NoError(t, err)
}

func TestEvictIdle(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	ctx := context.Background()

	host, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals", Party: true})
	require.NoError(t, err)
	code := host.PartyCode()

	assert.Zero(t, svc.EvictIdle(time.Now(), time.Hour), "fresh sessions stay")

	assert.Equal(t, 1, svc.EvictIdle(time.Now().Add(2*time.Hour), time.Hour))
	_, err = svc.Get(host.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, svc.PartyExists(code), "evicting the last member closes the party")
}

func TestRunJanitor(t *testing.T) {
	reporter := &fakeReporter{}
	svc := NewService(newProvider(capitals()), reporter, &fakeHub{}, Settings{Threshold: 1, IdleTimeout: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	sess, err := svc.Create(ctx, CreateRequest{CollectionID: "capitals"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.RunJanitor(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := svc.Get(sess.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRunJanitorDisabled(t *testing.T) {
	svc, _ := newTestService(&fakeHub{})
	done := make(chan struct{})
	go func() {
		svc.RunJanitor(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor without idle timeout should return")
	}
}

func TestServiceBatchWindowSetting(t *testing.T) {
	zero := time.Duration(0)
	svc := NewService(newProvider(capitals()), &fakeReporter{}, nil, Settings{Threshold: 1, BatchWindow: &zero})
	sess, err := svc.Create(context.Background(), CreateRequest{CollectionID: "capitals"})
	require.NoError(t, err)

	var mu sync.Mutex
	updates := 0
	sess.Subscribe(func(State) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	answer(t, sess, 0, "Paris")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, updates, "a zero window applies the update before UpdateCard returns")
}
