package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/storage"
)

// Subscriber receives notifications in real-time
type Subscriber interface {
	Send(notification Notification) error
	ID() string
}

// Service manages notifications
type Service struct {
	db          *storage.DB
	subscribers map[string]Subscriber
	mu          sync.RWMutex
}

// NewService creates a new notification service
func NewService(db *storage.DB) *Service {
	return &Service{
		db:          db,
		subscribers: make(map[string]Subscriber),
	}
}

// Subscribe adds a subscriber for real-time notifications
func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub.ID()] = sub
}

// Unsubscribe removes a subscriber
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// Create persists a new notification and broadcasts it to subscribers.
func (s *Service) Create(ctx context.Context, req CreateNotificationRequest) (*Notification, error) {
	notification := &Notification{
		ID:        uuid.New().String(),
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Urgency:   req.Urgency,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
	}

	if notification.Urgency == 0 {
		notification.Urgency = UrgencyMedium
	}

	if err := s.save(ctx, notification); err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}

	s.broadcast(*notification)

	return notification, nil
}

// save persists a notification to the database
func (s *Service) save(ctx context.Context, n *Notification) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO notifications (id, type, title, message, urgency, source, read, dismissed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Type, n.Title, n.Message, n.Urgency, n.Source, n.Read, n.Dismissed, n.CreatedAt)

	return err
}

// broadcast sends notification to all subscribers
func (s *Service) broadcast(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		go func(subscriber Subscriber) {
			subscriber.Send(n)
		}(sub)
	}
}

// Get retrieves a notification by ID
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	n := &Notification{}
	var message, source sql.NullString

	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, type, title, message, urgency, source, read, dismissed, created_at
		FROM notifications WHERE id = ?
	`, id).Scan(
		&n.ID, &n.Type, &n.Title, &message, &n.Urgency, &source, &n.Read, &n.Dismissed, &n.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification %s: %w", id, core.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}

	n.Message = message.String
	n.Source = source.String

	return n, nil
}

// List retrieves notifications with optional filters
func (s *Service) List(ctx context.Context, filter NotificationFilter) ([]*Notification, error) {
	query := `SELECT id, type, title, message, urgency, source, read, dismissed, created_at FROM notifications WHERE 1=1`
	args := []interface{}{}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Urgency > 0 {
		query += " AND urgency >= ?"
		args = append(args, filter.Urgency)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Read != nil {
		query += " AND read = ?"
		args = append(args, *filter.Read)
	}
	if filter.Dismissed != nil {
		query += " AND dismissed = ?"
		args = append(args, *filter.Dismissed)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 50"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		var message, source sql.NullString

		err := rows.Scan(
			&n.ID, &n.Type, &n.Title, &message, &n.Urgency, &source, &n.Read, &n.Dismissed, &n.CreatedAt,
		)
		if err != nil {
			continue
		}

		n.Message = message.String
		n.Source = source.String

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetUnread retrieves all unread notifications
func (s *Service) GetUnread(ctx context.Context) ([]*Notification, error) {
	read := false
	dismissed := false
	return s.List(ctx, NotificationFilter{Read: &read, Dismissed: &dismissed, Limit: 100})
}

// MarkRead marks a notification as read
func (s *Service) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE id = ?
	`, id)
	return err
}

// MarkAllRead marks all notifications as read
func (s *Service) MarkAllRead(ctx context.Context) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE read = 0
	`)
	return err
}

// Dismiss dismisses a notification
func (s *Service) Dismiss(ctx context.Context, id string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE notifications SET dismissed = 1 WHERE id = ?
	`, id)
	return err
}

// UnreadCount returns the count of unread notifications
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE read = 0 AND dismissed = 0
	`).Scan(&count)
	return count, err
}

// Stats returns notification statistics
func (s *Service) Stats(ctx context.Context) (*NotificationStats, error) {
	stats := &NotificationStats{
		ByType:    make(map[string]int),
		ByUrgency: make(map[int]int),
	}

	err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&stats.Total)
	if err != nil {
		return nil, err
	}

	err = s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE read = 0 AND dismissed = 0`).Scan(&stats.Unread)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Conn().QueryContext(ctx, `SELECT type, COUNT(*) FROM notifications GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var count int
		if err := rows.Scan(&t, &count); err == nil {
			stats.ByType[t] = count
		}
	}

	rows2, err := s.db.Conn().QueryContext(ctx, `SELECT urgency, COUNT(*) FROM notifications GROUP BY urgency`)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()

	for rows2.Next() {
		var u, count int
		if err := rows2.Scan(&u, &count); err == nil {
			stats.ByUrgency[u] = count
		}
	}

	var lastCreated sql.NullTime
	s.db.Conn().QueryRowContext(ctx, `SELECT MAX(created_at) FROM notifications`).Scan(&lastCreated)
	if lastCreated.Valid {
		stats.LastCreated = &lastCreated.Time
	}

	return stats, nil
}

// Cleanup removes old notifications that were already read or dismissed.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM notifications WHERE created_at < ? AND (read = 1 OR dismissed = 1)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// SendReminder creates a reminder notification
func (s *Service) SendReminder(ctx context.Context, title, message, eventID string, urgency int) (*Notification, error) {
	return s.Create(ctx, CreateNotificationRequest{
		Type:    NotifyReminder,
		Title:   title,
		Message: message,
		Source:  eventID,
		Urgency: urgency,
	})
}

// SendAutomation creates an automation-run notification
func (s *Service) SendAutomation(ctx context.Context, title, message, automationID string) (*Notification, error) {
	return s.Create(ctx, CreateNotificationRequest{
		Type:    NotifyAutomation,
		Title:   title,
		Message: message,
		Source:  automationID,
		Urgency: UrgencyMedium,
	})
}

// SendInsight creates an insight notification
func (s *Service) SendInsight(ctx context.Context, title, message string) (*Notification, error) {
	return s.Create(ctx, CreateNotificationRequest{
		Type:    NotifyInsight,
		Title:   title,
		Message: message,
		Urgency: UrgencyLow,
	})
}

// SendSystem creates a system notification
func (s *Service) SendSystem(ctx context.Context, title, message string) (*Notification, error) {
	return s.Create(ctx, CreateNotificationRequest{
		Type:    NotifySystem,
		Title:   title,
		Message: message,
		Urgency: UrgencyMedium,
	})
}
