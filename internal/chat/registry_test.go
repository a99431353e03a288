package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goblog-dev/goblog/internal/models"
)

type fakeConn struct {
	wrote   []any
	failErr error
	closed  bool
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.failErr != nil {
		return c.failErr
	}
	c.wrote = append(c.wrote, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeStore struct {
	saved      []*models.Message
	saveErr    error
	users      map[string]*models.User
	history    []models.Message
	listAllAsc bool
	listAllHit int
	listForHit uint64
}

func (s *fakeStore) SaveMessage(_ context.Context, msg *models.Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	msg.ID = uint64(len(s.saved) + 1)
	s.saved = append(s.saved, msg)
	return nil
}

func (s *fakeStore) FindRecipient(_ context.Context, username string) (*models.User, error) {
	if user, ok := s.users[username]; ok {
		return user, nil
	}
	return nil, ErrUnknownRecipient
}

func (s *fakeStore) ListAll(_ context.Context, oldestFirst bool) ([]models.Message, error) {
	s.listAllHit++
	s.listAllAsc = oldestFirst
	return s.history, nil
}

func (s *fakeStore) ListFor(_ context.Context, userID uint64) ([]models.Message, error) {
	s.listForHit = userID
	return nil, nil
}

func (s *fakeStore) HistoryFor(_ context.Context, _ string) ([]models.Message, error) {
	return s.history, nil
}

func newTestRegistry(store Store) *Registry {
	r := NewRegistry(store)
	r.nowFn = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestPublishBroadcastsToAllSessions(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)
	sender := &models.User{ID: 7, Username: "u1"}

	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Connect(context.Background(), c1, sender)
	r.Connect(context.Background(), c2, nil)

	msg, errPublish := r.Publish(context.Background(), sender, "", "", "hi")
	if errPublish != nil {
		t.Fatalf("expected publish ok, got %v", errPublish)
	}
	if msg.ID == 0 {
		t.Fatalf("expected persisted message id")
	}
	if len(c1.wrote) != 1 || len(c2.wrote) != 1 {
		t.Fatalf("expected both sessions to receive the message, got %d and %d", len(c1.wrote), len(c2.wrote))
	}
	payload, ok := c2.wrote[0].(Payload)
	if !ok {
		t.Fatalf("expected Payload, got %T", c2.wrote[0])
	}
	if payload.Author != "u1" || payload.Body != "hi" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPublishEmptyBody(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)
	c := &fakeConn{}
	r.Connect(context.Background(), c, nil)

	if _, errPublish := r.Publish(context.Background(), nil, "", "", "   \t "); !errors.Is(errPublish, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", errPublish)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing persisted")
	}
	if len(c.wrote) != 0 {
		t.Fatalf("expected nothing delivered")
	}
}

func TestPublishPersistenceFailureDeliversNothing(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	r := newTestRegistry(store)
	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Connect(context.Background(), c1, nil)
	r.Connect(context.Background(), c2, nil)

	_, errPublish := r.Publish(context.Background(), nil, "guest", "", "hello")
	if !errors.Is(errPublish, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", errPublish)
	}
	if len(c1.wrote) != 0 || len(c2.wrote) != 0 {
		t.Fatalf("expected zero deliveries on persistence failure")
	}
}

func TestPublishUnknownRecipient(t *testing.T) {
	store := &fakeStore{users: map[string]*models.User{}}
	r := newTestRegistry(store)

	_, errPublish := r.Publish(context.Background(), &models.User{ID: 1, Admin: true}, "", "ghost", "hello")
	if !errors.Is(errPublish, ErrUnknownRecipient) {
		t.Fatalf("expected ErrUnknownRecipient, got %v", errPublish)
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPublishDirectedMessageStillBroadcasts(t *testing.T) {
	bob := &models.User{ID: 2, Username: "bob"}
	store := &fakeStore{users: map[string]*models.User{"bob": bob}}
	r := newTestRegistry(store)

	// A third party unrelated to sender and recipient.
	bystander := &fakeConn{}
	r.Connect(context.Background(), bystander, nil)

	msg, errPublish := r.Publish(context.Background(), &models.User{ID: 1, Username: "alice", Admin: true}, "", "bob", "psst")
	if errPublish != nil {
		t.Fatalf("expected publish ok, got %v", errPublish)
	}
	if msg.RecipientID == nil || *msg.RecipientID != bob.ID {
		t.Fatalf("expected recipient resolved to bob")
	}
	if len(bystander.wrote) != 1 {
		t.Fatalf("expected broadcast to unrelated session")
	}
}

// lockedStore is a fakeStore whose SaveMessage is safe for concurrent use.
type lockedStore struct {
	fakeStore
	mu sync.Mutex
}

func (s *lockedStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeStore.SaveMessage(ctx, msg)
}

// Websocket connections tolerate at most one concurrent writer, so the
// registry must serialize writes per session. fakeConn is deliberately
// unsynchronized; run with -race to catch an unserialized write path.
func TestPublishConcurrentCallersSerializeWrites(t *testing.T) {
	store := &lockedStore{}
	r := newTestRegistry(store)
	shared := &fakeConn{}
	r.Connect(context.Background(), shared, nil)

	const workers, perWorker = 16, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, errPublish := r.Publish(context.Background(), nil, "", "", "ping"); errPublish != nil {
					t.Errorf("expected publish ok, got %v", errPublish)
				}
			}
		}()
	}
	wg.Wait()

	if len(shared.wrote) != workers*perWorker {
		t.Fatalf("expected %d deliveries, got %d", workers*perWorker, len(shared.wrote))
	}
}

func TestPublishRecipientReservedToAdmins(t *testing.T) {
	bob := &models.User{ID: 2, Username: "bob"}
	store := &fakeStore{users: map[string]*models.User{"bob": bob}}
	r := newTestRegistry(store)

	for _, sender := range []*models.User{nil, {ID: 1, Username: "alice"}} {
		_, errPublish := r.Publish(context.Background(), sender, "", "bob", "psst")
		if !errors.Is(errPublish, ErrRecipientNotAllowed) {
			t.Fatalf("expected ErrRecipientNotAllowed for sender %+v, got %v", sender, errPublish)
		}
	}
	if len(store.saved) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPublishStaleSessionSwallowed(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)
	stale := &fakeConn{failErr: errors.New("broken pipe")}
	live := &fakeConn{}
	r.Connect(context.Background(), stale, nil)
	r.Connect(context.Background(), live, nil)

	if _, errPublish := r.Publish(context.Background(), nil, "", "", "hi"); errPublish != nil {
		t.Fatalf("expected stale session not to fail publish, got %v", errPublish)
	}
	if len(live.wrote) != 1 {
		t.Fatalf("expected live session to still receive the message")
	}
}

func TestPublishAnonymousFallbackName(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)

	msg, errPublish := r.Publish(context.Background(), nil, "  ", "", "hi")
	if errPublish != nil {
		t.Fatalf("expected publish ok, got %v", errPublish)
	}
	if msg.AnonymousName != AnonymousName {
		t.Fatalf("expected fallback name %q, got %q", AnonymousName, msg.AnonymousName)
	}
	if msg.SenderID != nil {
		t.Fatalf("expected no sender id for anonymous message")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)
	c := &fakeConn{}
	handle := r.Connect(context.Background(), c, nil)

	r.Disconnect(handle)
	r.Disconnect(handle)
	r.Disconnect("no-such-handle")

	if r.ConnectedCount() != 0 {
		t.Fatalf("expected no sessions, got %d", r.ConnectedCount())
	}
	if _, errPublish := r.Publish(context.Background(), nil, "", "", "hi"); errPublish != nil {
		t.Fatalf("expected publish ok with no sessions, got %v", errPublish)
	}
	if len(c.wrote) != 0 {
		t.Fatalf("expected disconnected session to receive nothing")
	}
}

func TestConnectAdminHistoryPlayback(t *testing.T) {
	store := &fakeStore{history: []models.Message{{ID: 1, Body: "old", AnonymousName: "x"}}}
	r := newTestRegistry(store)
	admin := &fakeConn{}

	r.Connect(context.Background(), admin, &models.User{ID: 1, Admin: true})
	if !store.listAllAsc {
		t.Fatalf("expected playback oldest first")
	}
	if len(admin.wrote) != 1 {
		t.Fatalf("expected one playback write, got %d", len(admin.wrote))
	}
	playback, ok := admin.wrote[0].([]Payload)
	if !ok {
		t.Fatalf("expected []Payload playback, got %T", admin.wrote[0])
	}
	if len(playback) != 1 || playback[0].Body != "old" {
		t.Fatalf("unexpected playback: %+v", playback)
	}

	regular := &fakeConn{}
	r.Connect(context.Background(), regular, &models.User{ID: 2})
	if len(regular.wrote) != 0 {
		t.Fatalf("expected no playback for regular users")
	}
}

func TestListVisiblePolicy(t *testing.T) {
	store := &fakeStore{}
	r := newTestRegistry(store)

	if _, err := r.ListVisible(context.Background(), nil); err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	if store.listAllHit != 1 || store.listAllAsc {
		t.Fatalf("expected anonymous readers to see all, newest first")
	}

	if _, err := r.ListVisible(context.Background(), &models.User{ID: 3, Author: true}); err != nil {
		t.Fatalf("author list: %v", err)
	}
	if store.listAllHit != 2 {
		t.Fatalf("expected privileged readers to see all")
	}

	if _, err := r.ListVisible(context.Background(), &models.User{ID: 9}); err != nil {
		t.Fatalf("member list: %v", err)
	}
	if store.listForHit != 9 {
		t.Fatalf("expected regular readers scoped to their own messages")
	}
}
