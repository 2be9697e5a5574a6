// Package reminders keeps a durable lead-time schedule for calendar events.
// Scheduling an event writes one row per lead-time offset; a periodic sweep
// marks due rows fired and hands them to the notification service. Rows are
// plain SQLite records, so pending reminders survive a process restart.
package reminders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/state"
	"github.com/omnihq/omni/internal/storage"
)

// SweepInterval is how often the daemon scheduler should run SweepDue.
const SweepInterval = 30 * time.Second

// offsets are the lead times before an event's start at which a reminder
// fires, ordered furthest-out first. The zero offset fires at the start
// itself.
var offsets = []struct {
	lead    time.Duration
	label   string
	urgency int
}{
	{24 * time.Hour, "24h", notifications.UrgencyLow},
	{6 * time.Hour, "6h", notifications.UrgencyMedium},
	{1 * time.Hour, "1h", notifications.UrgencyHigh},
	{0, "start", notifications.UrgencyHigh},
}

// Reminder is one scheduled lead-time row for a calendar event.
type Reminder struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	DueAt       time.Time `json:"due_at"`
	OffsetLabel string    `json:"offset_label"`
	Fired       bool      `json:"fired"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier receives fired reminders. notifications.Service satisfies it.
type Notifier interface {
	SendReminder(ctx context.Context, title, message, eventID string, urgency int) (*notifications.Notification, error)
}

// Service schedules, cancels, and fires event reminders.
type Service struct {
	db       *storage.DB
	notifier Notifier
	log      *logging.Logger
}

// NewService creates a reminder service backed by db. notifier may be nil,
// in which case fired reminders are logged and dropped.
func NewService(db *storage.DB, notifier Notifier) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		log:      logging.Named("reminders"),
	}
}

// ScheduleEvent replaces the pending schedule for ev with fresh rows, one
// per lead-time offset that has not already passed. An event starting in
// two hours gets the "1h" and "start" rows only. Returns the number of
// rows scheduled.
func (s *Service) ScheduleEvent(ctx context.Context, ev core.CalendarEvent) (int, error) {
	if ev.ID == "" {
		return 0, fmt.Errorf("schedule reminders: event id is empty")
	}

	now := time.Now().UTC()
	scheduled := 0

	err := s.db.Transaction(func(tx *sql.Tx) error {
		// Re-scheduling an edited event must not duplicate rows.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reminders WHERE event_id = ? AND fired = 0`, ev.ID); err != nil {
			return err
		}

		for _, off := range offsets {
			dueAt := ev.Start.UTC().Add(-off.lead)
			if dueAt.Before(now) {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reminders (id, event_id, title, message, due_at, offset_label, fired, created_at)
				VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
				uuid.New().String(), ev.ID, ev.Title, reminderMessage(ev, off.label),
				dueAt, off.label, now,
			)
			if err != nil {
				return err
			}
			scheduled++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reminders: %w", err)
	}

	s.log.Debug("scheduled %d reminders for event %s", scheduled, ev.ID)
	return scheduled, nil
}

// CancelEvent removes the pending reminders for an event. Fired rows are
// kept for history. Returns the number of rows removed.
func (s *Service) CancelEvent(ctx context.Context, eventID string) (int, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM reminders WHERE event_id = ? AND fired = 0`, eventID)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SweepDue fires every pending reminder whose due time has passed. The
// fired flag is set in the same transaction that selects the rows, so a
// reminder is delivered at most once even if notification delivery fails.
// Returns the number of reminders fired.
func (s *Service) SweepDue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var due []Reminder

	err := s.db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_id, title, message, due_at, offset_label
			FROM reminders
			WHERE fired = 0 AND due_at <= ?
			ORDER BY due_at ASC`, now)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r Reminder
			if err := rows.Scan(&r.ID, &r.EventID, &r.Title, &r.Message, &r.DueAt, &r.OffsetLabel); err != nil {
				return err
			}
			due = append(due, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range due {
			if _, err := tx.ExecContext(ctx,
				`UPDATE reminders SET fired = 1 WHERE id = ?`, r.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep reminders: %w", err)
	}

	for _, r := range due {
		if s.notifier == nil {
			s.log.Info("reminder due (no notifier): %s", r.Title)
			continue
		}
		if _, err := s.notifier.SendReminder(ctx, r.Title, r.Message, r.EventID, urgencyFor(r.OffsetLabel)); err != nil {
			s.log.Warn("reminder notification failed for event %s: %v", r.EventID, err)
		}
	}

	return len(due), nil
}

// Pending lists unfired reminders ordered soonest first.
func (s *Service) Pending(ctx context.Context) ([]Reminder, error) {
	return s.list(ctx, `WHERE fired = 0`, nil)
}

// PendingForEvent lists the unfired reminders for one event.
func (s *Service) PendingForEvent(ctx context.Context, eventID string) ([]Reminder, error) {
	return s.list(ctx, `WHERE fired = 0 AND event_id = ?`, []interface{}{eventID})
}

func (s *Service) list(ctx context.Context, where string, args []interface{}) ([]Reminder, error) {
	query := `
		SELECT id, event_id, title, message, due_at, offset_label, fired, created_at
		FROM reminders ` + where + ` ORDER BY due_at ASC`

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var fired int
		if err := rows.Scan(&r.ID, &r.EventID, &r.Title, &r.Message, &r.DueAt, &r.OffsetLabel, &fired, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.Fired = fired == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// Watch subscribes to calendar changes in the state container: created
// events get a reminder schedule, deleted events get theirs cancelled.
// The returned function unsubscribes.
func (s *Service) Watch(st *state.Store) func() {
	return st.Subscribe(func(ch state.Change) {
		if ch.Collection != string(core.CollectionCalendarEvents) {
			return
		}
		ctx := context.Background()
		switch ch.Op {
		case "create":
			events, err := st.Events()
			if err != nil {
				return
			}
			for _, ev := range events {
				if ev.ID == ch.ID {
					if _, err := s.ScheduleEvent(ctx, ev); err != nil {
						s.log.Warn("scheduling reminders for event %s: %v", ev.ID, err)
					}
					return
				}
			}
		case "delete":
			if _, err := s.CancelEvent(ctx, ch.ID); err != nil {
				s.log.Warn("cancelling reminders for event %s: %v", ch.ID, err)
			}
		}
	})
}

func reminderMessage(ev core.CalendarEvent, label string) string {
	when := ev.Start.Local().Format("15:04")
	switch label {
	case "24h":
		return fmt.Sprintf("%s is tomorrow at %s", ev.Title, when)
	case "6h":
		return fmt.Sprintf("%s starts at %s today", ev.Title, when)
	case "1h":
		return fmt.Sprintf("%s starts in an hour, at %s", ev.Title, when)
	default:
		if ev.Location != "" {
			return fmt.Sprintf("%s is starting now at %s", ev.Title, ev.Location)
		}
		return fmt.Sprintf("%s is starting now", ev.Title)
	}
}

func urgencyFor(label string) int {
	for _, off := range offsets {
		if off.label == label {
			return off.urgency
		}
	}
	return notifications.UrgencyMedium
}
