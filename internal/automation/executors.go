package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/scheduler"
	"github.com/omnihq/omni/internal/state"
)

// Executor performs one kind of automation action.
type Executor interface {
	Type() ActionType
	Execute(ctx context.Context, automationID string, action Action) (string, error)
}

// automationService tags records created by actions so event triggers can
// tell them apart from user activity.
const automationService = "automation"

// messageExecutor appends a message to the local feed.
// Parameters: message (required), recipient (default "self").
type messageExecutor struct {
	store *state.Store
}

func (messageExecutor) Type() ActionType { return ActionSendMessage }

func (x messageExecutor) Execute(ctx context.Context, automationID string, action Action) (string, error) {
	message := action.StringParam("message")
	if message == "" {
		return "", fmt.Errorf("message parameter: %w", core.ErrMissingRequired)
	}
	recipient := action.StringParam("recipient")
	if recipient == "" {
		recipient = "self"
	}
	if _, err := x.store.AddMessage(state.MessageInput{
		Sender:    automationService,
		Recipient: recipient,
		Content:   message,
		Service:   automationService,
	}); err != nil {
		return "", err
	}
	return "message sent to " + recipient, nil
}

// taskExecutor adds a task to the local feed.
// Parameters: title (required), description, priority (default medium).
type taskExecutor struct {
	store *state.Store
}

func (taskExecutor) Type() ActionType { return ActionCreateTask }

func (x taskExecutor) Execute(ctx context.Context, automationID string, action Action) (string, error) {
	title := action.StringParam("title")
	if title == "" {
		return "", fmt.Errorf("title parameter: %w", core.ErrMissingRequired)
	}
	task, err := x.store.AddTask(state.TaskInput{
		Title:       title,
		Description: action.StringParam("description"),
		Priority:    core.Priority(strings.ToLower(strings.TrimSpace(action.StringParam("priority")))),
		Service:     automationService,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("task %q created", task.Title), nil
}

// reminderExecutor sends a reminder notification, now or after a delay.
// Parameters: message (required), delay_minutes (default 0, immediate).
type reminderExecutor struct {
	sched    *scheduler.Scheduler
	notifier Notifier
}

func (reminderExecutor) Type() ActionType { return ActionSetReminder }

func (x reminderExecutor) Execute(ctx context.Context, automationID string, action Action) (string, error) {
	message := action.StringParam("message")
	if message == "" {
		return "", fmt.Errorf("message parameter: %w", core.ErrMissingRequired)
	}
	if x.notifier == nil {
		return "", fmt.Errorf("notification service unavailable")
	}

	delay := time.Duration(action.IntParam("delay_minutes", 0)) * time.Minute
	if delay <= 0 {
		if _, err := x.notifier.SendReminder(ctx, "Reminder", message, "", notifications.UrgencyMedium); err != nil {
			return "", err
		}
		return "reminder sent", nil
	}

	if x.sched == nil {
		return "", fmt.Errorf("scheduler unavailable")
	}
	id := "automation-reminder:" + uuid.New().String()
	err := x.sched.Register(scheduler.OnceJob(id, "automation reminder", time.Now().Add(delay),
		func(ctx context.Context) error {
			defer func() { go x.sched.Remove(id) }()
			_, err := x.notifier.SendReminder(ctx, "Reminder", message, "", notifications.UrgencyMedium)
			return err
		}))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reminder set for %s from now", delay), nil
}

// activityExecutor records an activity line in the log.
// Parameters: activity (or message).
type activityExecutor struct {
	log *logging.Logger
}

func (activityExecutor) Type() ActionType { return ActionLogActivity }

func (x activityExecutor) Execute(ctx context.Context, automationID string, action Action) (string, error) {
	activity := action.StringParam("activity")
	if activity == "" {
		activity = action.StringParam("message")
	}
	if activity == "" {
		activity = "activity"
	}
	x.log.Info("automation %s logged: %s", automationID, activity)
	return "activity logged", nil
}

// notificationExecutor raises a notification-center entry.
// Parameters: message (required), title (default "Automation").
type notificationExecutor struct {
	notifier Notifier
}

func (notificationExecutor) Type() ActionType { return ActionSendNotification }

func (x notificationExecutor) Execute(ctx context.Context, automationID string, action Action) (string, error) {
	message := action.StringParam("message")
	if message == "" {
		return "", fmt.Errorf("message parameter: %w", core.ErrMissingRequired)
	}
	if x.notifier == nil {
		return "", fmt.Errorf("notification service unavailable")
	}
	title := action.StringParam("title")
	if title == "" {
		title = "Automation"
	}
	if _, err := x.notifier.SendAutomation(ctx, title, message, automationID); err != nil {
		return "", err
	}
	return "notification sent", nil
}
