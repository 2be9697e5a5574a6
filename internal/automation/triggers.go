package automation

import (
	"context"
	"strings"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/state"
)

// Event names fed to event_based triggers.
const (
	EventTaskCreated     = "task_created"
	EventTaskCompleted   = "task_completed"
	EventMessageReceived = "message_received"
	EventCalendarAdded   = "event_created"
)

// ConditionSweepInterval is how often the daemon scheduler should run
// SweepConditions.
const ConditionSweepInterval = 15 * time.Minute

const (
	// conditionCooldown keeps a condition that stays true from refiring
	// its automation on every sweep.
	conditionCooldown = 24 * time.Hour

	upcomingWindow = 15 * time.Minute
	deadlineWindow = 24 * time.Hour
)

// Watch subscribes the engine to store changes so event_based automations
// fire on live activity. Remote sync pulls (op "sync") and records written
// by automation actions never fire events. Returns an unsubscribe func.
func (e *Engine) Watch() func() {
	return e.store.Subscribe(func(ch state.Change) {
		event := e.eventFor(ch)
		if event == "" {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := e.HandleEvent(ctx, event); err != nil {
				e.log.Warn("event %s: %v", event, err)
			}
		}()
	})
}

// eventFor maps a store change to an event name, or "" for changes that
// fire nothing.
func (e *Engine) eventFor(ch state.Change) string {
	switch ch.Collection {
	case "tasks":
		switch ch.Op {
		case "create":
			if t, err := e.store.Task(ch.ID); err == nil && t.Service == automationService {
				return ""
			}
			return EventTaskCreated
		case "complete":
			if t, err := e.store.Task(ch.ID); err == nil && t.Service == automationService {
				return ""
			}
			return EventTaskCompleted
		}
	case "messages":
		if ch.Op != "create" {
			return ""
		}
		if m, ok := e.message(ch.ID); ok && m.Service == automationService {
			return ""
		}
		return EventMessageReceived
	case "calendar_events":
		if ch.Op == "create" {
			return EventCalendarAdded
		}
	}
	return ""
}

func (e *Engine) message(id string) (core.Message, bool) {
	msgs, err := e.store.Messages()
	if err != nil {
		return core.Message{}, false
	}
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return core.Message{}, false
}

// HandleEvent runs every enabled event_based automation listening for
// event. Returns the number that ran.
func (e *Engine) HandleEvent(ctx context.Context, event string) (int, error) {
	autos, err := e.List(ctx)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, auto := range autos {
		if !auto.Enabled || auto.Trigger != core.TriggerEventBased || auto.TriggerSpec != event {
			continue
		}
		if !e.conditionsMet(auto.Conditions) {
			continue
		}
		report := e.execute(ctx, auto)
		e.recordRun(ctx, auto.ID, report.Success)
		ran++
	}
	return ran, nil
}

// SweepConditions evaluates every enabled condition_based automation and
// runs the ones whose condition currently holds. A fired automation rests
// for a day before the sweep considers it again. Returns the number run.
func (e *Engine) SweepConditions(ctx context.Context) (int, error) {
	autos, err := e.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	ran := 0
	for _, auto := range autos {
		if !auto.Enabled || auto.Trigger != core.TriggerConditionBased {
			continue
		}
		if auto.LastRun != nil && now.Sub(*auto.LastRun) < conditionCooldown {
			continue
		}
		met, known := e.evaluateCondition(auto.TriggerSpec)
		if !known || !met {
			continue
		}
		if !e.conditionsMet(auto.Conditions) {
			continue
		}
		report := e.execute(ctx, auto)
		e.recordRun(ctx, auto.ID, report.Success)
		ran++
	}
	return ran, nil
}

// conditionsMet reports whether every gate condition holds. Names the
// engine does not understand are ignored.
func (e *Engine) conditionsMet(conditions []string) bool {
	for _, c := range conditions {
		met, known := e.evaluateCondition(c)
		if known && !met {
			return false
		}
	}
	return true
}

// evaluateCondition resolves one named condition against the live store.
func (e *Engine) evaluateCondition(name string) (met bool, known bool) {
	switch name {
	case "work_mode":
		return e.focusIs("work"), true
	case "personal_mode":
		return e.focusIs("personal"), true
	case "upcoming_meeting":
		return e.hasUpcomingMeeting(), true
	case "deadline_approaching":
		return e.hasApproachingDeadline(), true
	}
	return false, false
}

func (e *Engine) focusIs(mode string) bool {
	uc, err := e.store.UserContext()
	return err == nil && strings.EqualFold(uc.CurrentFocus, mode)
}

// hasUpcomingMeeting reports whether any calendar event starts within the
// next 15 minutes.
func (e *Engine) hasUpcomingMeeting() bool {
	events, err := e.store.Events()
	if err != nil {
		return false
	}
	now := time.Now()
	for _, ev := range events {
		until := ev.Start.Sub(now)
		if until >= 0 && until <= upcomingWindow {
			return true
		}
	}
	return false
}

// hasApproachingDeadline reports whether any pending task is due within
// the next 24 hours.
func (e *Engine) hasApproachingDeadline() bool {
	tasks, err := e.store.PendingTasks()
	if err != nil {
		return false
	}
	now := time.Now()
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		until := t.DueDate.Sub(now)
		if until >= 0 && until <= deadlineWindow {
			return true
		}
	}
	return false
}
