// Package chat owns the live chat connection set and the message history.
// Delivery is a true broadcast: every connected session observes every
// published message, including directed ones. That mirrors the product's
// open-chat behavior and is a privacy-relevant choice, not an oversight.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goblog-dev/goblog/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AnonymousName is the display name assigned when an anonymous sender gives none.
const AnonymousName = "Anónimo"

// Typed publish failures surfaced to callers.
var (
	// ErrEmptyBody rejects messages that are empty after trimming.
	ErrEmptyBody = errors.New("chat: empty message body")
	// ErrUnknownRecipient rejects messages directed at a nonexistent user.
	ErrUnknownRecipient = errors.New("chat: unknown recipient")
	// ErrRecipientNotAllowed rejects directed messages from non-admin senders.
	ErrRecipientNotAllowed = errors.New("chat: directed messages are admin-only")
	// ErrPersistence wraps storage failures; the publish is safe to retry.
	ErrPersistence = errors.New("chat: persistence failure")
)

// Conn is the write side of a realtime session. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Payload is the wire form of a message delivered to connected sessions.
type Payload struct {
	ID     uint64    `json:"id"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// session is one live realtime connection. Owned exclusively by the Registry.
type session struct {
	handle string
	conn   Conn
	user   *models.User

	// writeMu serializes writes; websocket connections support at most
	// one concurrent writer.
	writeMu sync.Mutex
}

// write delivers v over the connection, holding the session write lock.
func (s *session) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Registry tracks connected realtime sessions and fans published messages out
// to all of them. It is shared process-wide state, safe for concurrent use.
type Registry struct {
	store Store
	nowFn func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewRegistry constructs a Registry backed by the given message store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:    store,
		nowFn:    time.Now,
		sessions: make(map[string]*session),
	}
}

// Connect registers a live connection and returns its handle. Administrators
// receive a one-time playback of the full message history, oldest first, as
// of connect time.
func (r *Registry) Connect(ctx context.Context, conn Conn, user *models.User) string {
	s := &session{handle: uuid.NewString(), conn: conn, user: user}
	r.mu.Lock()
	r.sessions[s.handle] = s
	r.mu.Unlock()

	if user != nil && user.Admin {
		history, errList := r.store.ListAll(ctx, true)
		if errList != nil {
			log.WithError(errList).Warn("chat: history playback failed")
		} else if errWrite := s.write(PayloadsOf(history)); errWrite != nil {
			log.WithError(errWrite).Debug("chat: history playback write failed")
		}
	}
	return s.handle
}

// Disconnect removes the connection. Unknown or already removed handles are
// a no-op.
func (r *Registry) Disconnect(handle string) {
	r.mu.Lock()
	delete(r.sessions, handle)
	r.mu.Unlock()
}

// Send delivers v to the single session identified by handle, serialized
// with any concurrent broadcast to the same connection. Unknown handles are
// a no-op.
func (r *Registry) Send(handle string, v any) error {
	r.mu.RLock()
	s, ok := r.sessions[handle]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.write(v)
}

// ConnectedCount returns the number of live sessions.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Publish validates, persists, and broadcasts a message. The broadcast runs
// strictly after the storage transaction commits; a persistence failure
// delivers to no session. sender nil means anonymous. recipient, when
// non-empty, must name an existing user and is reserved to admin senders.
func (r *Registry) Publish(ctx context.Context, sender *models.User, anonymousName, recipient, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	msg := &models.Message{Body: body, SentAt: r.nowFn().UTC()}
	if sender != nil && sender.ID != 0 {
		senderID := sender.ID
		msg.SenderID = &senderID
		msg.Sender = sender
	} else {
		name := strings.TrimSpace(anonymousName)
		if name == "" {
			name = AnonymousName
		}
		msg.AnonymousName = name
	}

	if recipient = strings.TrimSpace(recipient); recipient != "" {
		if sender == nil || !sender.Admin {
			return nil, ErrRecipientNotAllowed
		}
		target, errFind := r.store.FindRecipient(ctx, recipient)
		if errFind != nil {
			if errors.Is(errFind, ErrUnknownRecipient) {
				return nil, ErrUnknownRecipient
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, errFind)
		}
		recipientID := target.ID
		msg.RecipientID = &recipientID
		msg.Recipient = target
	}

	if errSave := r.store.SaveMessage(ctx, msg); errSave != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, errSave)
	}

	r.broadcast(payloadFor(msg))
	return msg, nil
}

// broadcast delivers the payload to a snapshot of the current session set.
// Sessions that fail to accept the write are dropped silently; a stale
// connection never fails the publish or starves the remaining sessions.
func (r *Registry) broadcast(p Payload) {
	r.mu.RLock()
	targets := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if errWrite := s.write(p); errWrite != nil {
			log.WithError(errWrite).Debugf("chat: dropping write to stale session %s", s.handle)
		}
	}
}

// ListVisible returns the messages the requester may see, newest first.
// Anonymous readers and privileged users (admin or author) see everything;
// other authenticated users see only messages they sent or received.
func (r *Registry) ListVisible(ctx context.Context, requester *models.User) ([]models.Message, error) {
	if requester == nil || requester.Privileged() {
		return r.store.ListAll(ctx, false)
	}
	return r.store.ListFor(ctx, requester.ID)
}

// History returns a user's full conversation, oldest first.
func (r *Registry) History(ctx context.Context, username string) ([]models.Message, error) {
	return r.store.HistoryFor(ctx, username)
}

// payloadFor serializes a message for delivery.
func payloadFor(m *models.Message) Payload {
	return Payload{
		ID:     m.ID,
		Author: m.AuthorName(),
		Body:   m.Body,
		SentAt: m.SentAt,
	}
}

// PayloadsOf maps a message slice to wire form.
func PayloadsOf(msgs []models.Message) []Payload {
	out := make([]Payload, 0, len(msgs))
	for i := range msgs {
		out = append(out, payloadFor(&msgs[i]))
	}
	return out
}
