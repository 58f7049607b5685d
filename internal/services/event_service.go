package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/isdelr/ender-blog/internal/models"
)

// EventServiceProvider defines the interface for the activity log.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, postID *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService records who changed what on the blog.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, postID *string) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		PostID:  postID,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, level, message, post_id) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.PostID,
	)
	return err
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, level, message, post_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.PostID, timeScanner{&event.CreatedAt}); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
