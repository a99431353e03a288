package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goblog-dev/goblog/internal/db"
	"github.com/goblog-dev/goblog/internal/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "chat.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate database: %v", errMigrate)
	}
	return NewGormStore(conn)
}

func makeUser(t *testing.T, store *GormStore, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Name: username, Password: "x"}
	if errCreate := store.db.Create(user).Error; errCreate != nil {
		t.Fatalf("create user %s: %v", username, errCreate)
	}
	return user
}

func TestGormStoreSaveAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := makeUser(t, store, "alice")

	msg := &models.Message{Body: "hello", SenderID: &alice.ID}
	if errSave := store.SaveMessage(ctx, msg); errSave != nil {
		t.Fatalf("save message: %v", errSave)
	}
	if msg.ID == 0 {
		t.Fatalf("expected message id assigned")
	}

	found, errFind := store.FindRecipient(ctx, "alice")
	if errFind != nil {
		t.Fatalf("find recipient: %v", errFind)
	}
	if found.ID != alice.ID {
		t.Fatalf("expected user %d, got %d", alice.ID, found.ID)
	}

	if _, errFind = store.FindRecipient(ctx, "nobody"); !errors.Is(errFind, ErrUnknownRecipient) {
		t.Fatalf("expected ErrUnknownRecipient, got %v", errFind)
	}
}

func TestGormStoreVisibilityScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := makeUser(t, store, "alice")
	bob := makeUser(t, store, "bob")
	carol := makeUser(t, store, "carol")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []*models.Message{
		{Body: "from alice", SenderID: &alice.ID, SentAt: base},
		{Body: "to alice", SenderID: &bob.ID, RecipientID: &alice.ID, SentAt: base.Add(time.Minute)},
		{Body: "between others", SenderID: &bob.ID, RecipientID: &carol.ID, SentAt: base.Add(2 * time.Minute)},
		{Body: "anonymous", AnonymousName: "guest", SentAt: base.Add(3 * time.Minute)},
	}
	for _, msg := range seed {
		if errSave := store.SaveMessage(ctx, msg); errSave != nil {
			t.Fatalf("save message: %v", errSave)
		}
	}

	all, errList := store.ListAll(ctx, false)
	if errList != nil {
		t.Fatalf("list all: %v", errList)
	}
	if len(all) != len(seed) {
		t.Fatalf("expected %d messages, got %d", len(seed), len(all))
	}
	if all[0].Body != "anonymous" {
		t.Fatalf("expected newest first, got %q", all[0].Body)
	}

	mine, errList := store.ListFor(ctx, alice.ID)
	if errList != nil {
		t.Fatalf("list for alice: %v", errList)
	}
	if len(mine) != 2 {
		t.Fatalf("expected alice to see 2 messages, got %d", len(mine))
	}
	for _, msg := range mine {
		if msg.Body == "between others" || msg.Body == "anonymous" {
			t.Fatalf("alice should not see %q", msg.Body)
		}
	}
}

func TestGormStoreHistoryOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := makeUser(t, store, "alice")
	bob := makeUser(t, store, "bob")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pair := []*models.Message{
		{Body: "first", SenderID: &alice.ID, RecipientID: &bob.ID, SentAt: base},
		{Body: "second", SenderID: &bob.ID, RecipientID: &alice.ID, SentAt: base.Add(time.Minute)},
		{Body: "unrelated", SenderID: &alice.ID, SentAt: base.Add(2 * time.Minute)},
	}
	for _, msg := range pair {
		if errSave := store.SaveMessage(ctx, msg); errSave != nil {
			t.Fatalf("save message: %v", errSave)
		}
	}

	history, errHistory := store.HistoryFor(ctx, "bob")
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages in conversation, got %d", len(history))
	}
	if history[0].Body != "first" || history[1].Body != "second" {
		t.Fatalf("expected oldest first, got %q then %q", history[0].Body, history[1].Body)
	}
}

func TestGormStoreDeleteMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := makeUser(t, store, "alice")
	bob := makeUser(t, store, "bob")
	admin := &models.User{ID: alice.ID, Username: alice.Username, Admin: true}

	msg := &models.Message{Body: "mine", SenderID: &alice.ID}
	if errSave := store.SaveMessage(ctx, msg); errSave != nil {
		t.Fatalf("save message: %v", errSave)
	}

	if errDelete := store.DeleteMessage(ctx, msg.ID, bob); !errors.Is(errDelete, ErrNotMessageOwner) {
		t.Fatalf("expected ErrNotMessageOwner, got %v", errDelete)
	}
	if errDelete := store.DeleteMessage(ctx, msg.ID, alice); errDelete != nil {
		t.Fatalf("owner delete: %v", errDelete)
	}
	if errDelete := store.DeleteMessage(ctx, msg.ID, admin); !errors.Is(errDelete, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound after delete, got %v", errDelete)
	}

	anon := &models.Message{Body: "anon", AnonymousName: "guest"}
	if errSave := store.SaveMessage(ctx, anon); errSave != nil {
		t.Fatalf("save message: %v", errSave)
	}
	if errDelete := store.DeleteMessage(ctx, anon.ID, bob); !errors.Is(errDelete, ErrNotMessageOwner) {
		t.Fatalf("expected ErrNotMessageOwner for anonymous message, got %v", errDelete)
	}
	adminBob := &models.User{ID: bob.ID, Username: bob.Username, Admin: true}
	if errDelete := store.DeleteMessage(ctx, anon.ID, adminBob); errDelete != nil {
		t.Fatalf("admin delete: %v", errDelete)
	}
}
