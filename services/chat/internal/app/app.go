package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kreatorboard/internal/util"
	"kreatorboard/pkg/bus"
	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Bus         bus.Bus
}

// App is the core application service wiring together storage and messaging.
type App struct {
	store store.Store
	bus   bus.Bus
}

// New constructs the application with database-backed storage for messages.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	eventBus := cfg.Bus
	if eventBus == nil {
		eventBus = bus.NewMemoryBus()
	}
	return &App{store: dataStore, bus: eventBus}, nil
}

// UserByID resolves a user row, for request authorization.
func (a *App) UserByID(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// LoadThread returns the partner profile and the full message history between
// self and partner in send order. Opening a thread marks it read for self.
func (a *App) LoadThread(self domain.User, partnerID string) (domain.User, []domain.Message, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return domain.User{}, nil, ErrPartnerNotFound
	}
	partner, ok, err := a.store.GetUserByID(partnerID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("fetch partner: %w", err)
	}
	if !ok {
		return domain.User{}, nil, ErrPartnerNotFound
	}
	messages, err := a.store.ListThread(self.ID, partnerID)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("list thread: %w", err)
	}
	if err := a.store.MarkThreadRead(self.ID, partnerID, time.Now().UTC()); err != nil {
		return domain.User{}, nil, fmt.Errorf("mark thread read: %w", err)
	}
	return partner, messages, nil
}

// Send validates and stores a message, then broadcasts it on the bus. The
// created message is returned so the sender can append it optimistically and
// de-duplicate by id when the realtime copy arrives.
func (a *App) Send(ctx context.Context, self domain.User, partnerID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	partnerID = strings.TrimSpace(partnerID)
	_, ok, err := a.store.GetUserByID(partnerID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("fetch partner: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrPartnerNotFound
	}
	msg := domain.Message{
		ID:         util.NewID(),
		SenderID:   self.ID,
		ReceiverID: partnerID,
		Message:    text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	if err := a.bus.Publish(ctx, bus.Event{Type: bus.EventMessageCreated, Message: msg}); err != nil {
		return domain.Message{}, fmt.Errorf("publish message event: %w", err)
	}
	return msg, nil
}

// Inbox lists one entry per distinct chat partner with the latest message and
// the viewer's unread count.
func (a *App) Inbox(self domain.User) ([]domain.Conversation, error) {
	items, err := a.store.ListConversations(self.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}
