package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"kreatorboard/pkg/bus"
	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *bus.MemoryBus) {
	t.Helper()
	dataStore := store.NewMemoryStore()
	eventBus := bus.NewMemoryBus()
	a, err := New(Config{Store: dataStore, Bus: eventBus})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, dataStore, eventBus
}

func seedUser(t *testing.T, s *store.MemoryStore, id, name string, role domain.UserRole) domain.User {
	t.Helper()
	user := domain.User{
		ID:        id,
		Email:     id + "@example.com",
		FullName:  name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveUser(user); err != nil {
		t.Fatalf("save user %s: %v", id, err)
	}
	return user
}

func TestSendAndLoadThreadKeepsSendOrder(t *testing.T) {
	a, dataStore, _ := newTestApp(t)
	alice := seedUser(t, dataStore, "alice", "Alice", domain.RoleStartup)
	bob := seedUser(t, dataStore, "bob", "Bob", domain.RoleInfluencer)
	ctx := context.Background()

	for _, send := range []struct {
		from domain.User
		to   string
		text string
	}{
		{alice, bob.ID, "first"},
		{bob, alice.ID, "second"},
		{alice, bob.ID, "third"},
	} {
		if _, err := a.Send(ctx, send.from, send.to, send.text); err != nil {
			t.Fatalf("send %q: %v", send.text, err)
		}
	}

	partner, messages, err := a.LoadThread(alice, bob.ID)
	if err != nil {
		t.Fatalf("load thread: %v", err)
	}
	if partner.ID != bob.ID || partner.FullName != "Bob" {
		t.Fatalf("unexpected partner: %+v", partner)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Message != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, messages[i].Message)
		}
	}
}

func TestSendRejectsWhitespaceWithoutWrite(t *testing.T) {
	a, dataStore, _ := newTestApp(t)
	alice := seedUser(t, dataStore, "alice", "Alice", domain.RoleStartup)
	bob := seedUser(t, dataStore, "bob", "Bob", domain.RoleInfluencer)

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := a.Send(context.Background(), alice, bob.ID, text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("text %q: expected ErrEmptyMessage, got %v", text, err)
		}
	}
	messages, err := dataStore.ListThread(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list thread: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no stored messages, got %d", len(messages))
	}
}

func TestSendPublishesEventAndReturnsMessage(t *testing.T) {
	a, dataStore, eventBus := newTestApp(t)
	alice := seedUser(t, dataStore, "alice", "Alice", domain.RoleStartup)
	bob := seedUser(t, dataStore, "bob", "Bob", domain.RoleInfluencer)

	var events []bus.Event
	eventBus.Subscribe(context.Background(), func(e bus.Event) { events = append(events, e) })

	msg, err := a.Send(context.Background(), alice, bob.ID, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == "" || msg.SenderID != alice.ID || msg.ReceiverID != bob.ID {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != bus.EventMessageCreated || events[0].Message.ID != msg.ID {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestSendToUnknownPartner(t *testing.T) {
	a, dataStore, _ := newTestApp(t)
	alice := seedUser(t, dataStore, "alice", "Alice", domain.RoleStartup)

	if _, err := a.Send(context.Background(), alice, "ghost", "hi"); !errors.Is(err, ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound, got %v", err)
	}
	if _, _, err := a.LoadThread(alice, "ghost"); !errors.Is(err, ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound on load, got %v", err)
	}
}

func TestLoadThreadClearsUnread(t *testing.T) {
	a, dataStore, _ := newTestApp(t)
	alice := seedUser(t, dataStore, "alice", "Alice", domain.RoleStartup)
	bob := seedUser(t, dataStore, "bob", "Bob", domain.RoleInfluencer)
	ctx := context.Background()

	if _, err := a.Send(ctx, bob, alice.ID, "ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	inbox, err := a.Inbox(alice)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread, got %+v", inbox)
	}

	if _, _, err := a.LoadThread(alice, bob.ID); err != nil {
		t.Fatalf("load thread: %v", err)
	}
	inbox, err = a.Inbox(alice)
	if err != nil {
		t.Fatalf("inbox after read: %v", err)
	}
	if inbox[0].UnreadCount != 0 {
		t.Fatalf("expected unread cleared, got %d", inbox[0].UnreadCount)
	}
}
