package repository

import (
	"context"
	"time"
)

// EventRepository journals published analysis events.
type EventRepository interface {
	Store(ctx context.Context, event Event) error
	FindBySessionID(ctx context.Context, sessionID string) ([]Event, error)
	FindByEventType(ctx context.Context, eventType string, limit int) ([]Event, error)
	DeleteOldEvents(ctx context.Context, beforeTime time.Time) error
	GetEventStats(ctx context.Context) (map[string]int64, error)
}

// Event is one journal entry. Data comes back from the journal as a decoded
// JSON object.
type Event struct {
	ID        string      `json:"id"`
	EventType string      `json:"event_type"`
	SessionID string      `json:"session_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
