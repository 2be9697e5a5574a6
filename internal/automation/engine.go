// Package automation runs user-defined workflows. An automation pairs a
// trigger (a wall-clock schedule, a store event, a condition, or a manual
// run) with a list of actions executed in order. Definitions live in
// SQLite; the state store carries a lightweight mirror for the dashboard,
// re-registered from the durable rows at startup. Run statistics
// accumulate on both.
package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/scheduler"
	"github.com/omnihq/omni/internal/state"
	"github.com/omnihq/omni/internal/storage"
)

// actionTimeout bounds a single action's execution.
const actionTimeout = 30 * time.Second

var (
	// ErrDisabled rejects a manual run of a disabled automation.
	ErrDisabled = errors.New("automation is disabled")

	// ErrConditionsNotMet rejects a run whose gate conditions do not hold.
	ErrConditionsNotMet = errors.New("automation conditions not met")
)

// ActionType says what a single workflow step does.
type ActionType string

const (
	ActionSendMessage      ActionType = "send_message"
	ActionCreateTask       ActionType = "create_task"
	ActionSetReminder      ActionType = "set_reminder"
	ActionLogActivity      ActionType = "log_activity"
	ActionSendNotification ActionType = "send_notification"
)

// Action is one step of an automation workflow.
type Action struct {
	Type         ActionType             `json:"type"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	DelaySeconds int                    `json:"delay_seconds,omitempty"`
}

// StringParam returns a string parameter, or "" when absent.
func (a Action) StringParam(key string) string {
	if v, ok := a.Parameters[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IntParam returns an integer parameter, tolerating JSON numbers and
// numeric strings. Absent or malformed values return def.
func (a Action) IntParam(key string, def int) int {
	switch v := a.Parameters[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Result is the outcome of one executed action.
type Result struct {
	Action  ActionType `json:"action"`
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// RunReport is what one automation run settled to. Success means every
// action succeeded.
type RunReport struct {
	AutomationID string    `json:"automation_id"`
	Name         string    `json:"automation_name"`
	ExecutedAt   time.Time `json:"executed_at"`
	Results      []Result  `json:"results"`
	Success      bool      `json:"success"`
}

// Automation is a full workflow definition with its actions, as stored.
type Automation struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Trigger      core.TriggerType `json:"trigger"`
	TriggerSpec  string           `json:"trigger_spec,omitempty"`
	Actions      []Action         `json:"actions"`
	Conditions   []string         `json:"conditions,omitempty"`
	Enabled      bool             `json:"enabled"`
	RunCount     int              `json:"run_count"`
	SuccessCount int              `json:"success_count"`
	LastRun      *time.Time       `json:"last_run,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// mirror is the lightweight dashboard shape of an automation.
func (a Automation) mirror() core.Automation {
	rate := 1.0
	if a.RunCount > 0 {
		rate = core.ClampScore(float64(a.SuccessCount) / float64(a.RunCount))
	}
	return core.Automation{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Trigger:      a.Trigger,
		TriggerSpec:  a.TriggerSpec,
		Enabled:      a.Enabled,
		ActionsCount: len(a.Actions),
		RunCount:     a.RunCount,
		SuccessRate:  rate,
		LastRun:      a.LastRun,
		CreatedAt:    a.CreatedAt,
	}
}

// Definition is the caller-supplied shape of a new automation.
type Definition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Trigger     core.TriggerType `json:"trigger"`
	TriggerSpec string           `json:"trigger_spec,omitempty"`
	Actions     []Action         `json:"actions"`
	Conditions  []string         `json:"conditions,omitempty"`
}

// Notifier delivers automation output to the notification center.
// notifications.Service satisfies it.
type Notifier interface {
	SendAutomation(ctx context.Context, title, message, automationID string) (*notifications.Notification, error)
	SendReminder(ctx context.Context, title, message, eventID string, urgency int) (*notifications.Notification, error)
}

// Engine owns the automation definitions and runs them.
type Engine struct {
	db       *storage.DB
	store    *state.Store
	sched    *scheduler.Scheduler
	notifier Notifier

	mu        sync.RWMutex
	executors map[ActionType]Executor

	log *logging.Logger
}

// NewEngine creates the engine and installs the built-in executors.
// sched and notifier may be nil; actions that need them fail in their
// results instead of crashing the run.
func NewEngine(db *storage.DB, st *state.Store, sched *scheduler.Scheduler, notifier Notifier) *Engine {
	e := &Engine{
		db:        db,
		store:     st,
		sched:     sched,
		notifier:  notifier,
		executors: make(map[ActionType]Executor),
		log:       logging.Named("automation"),
	}
	for _, exec := range []Executor{
		messageExecutor{store: st},
		taskExecutor{store: st},
		reminderExecutor{sched: sched, notifier: notifier},
		activityExecutor{log: e.log},
		notificationExecutor{notifier: notifier},
	} {
		e.RegisterExecutor(exec)
	}
	return e
}

// RegisterExecutor installs or replaces the executor for one action type.
func (e *Engine) RegisterExecutor(exec Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[exec.Type()] = exec
}

// Restore loads the durable automations, mirrors them into the state
// store, and schedules the time triggers. Returns the number restored.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	autos, err := e.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, auto := range autos {
		if err := e.store.RegisterAutomation(auto.mirror()); err != nil {
			return 0, fmt.Errorf("restore %s: %w", auto.ID, err)
		}
		if auto.Enabled && auto.Trigger == core.TriggerTimeBased {
			if err := e.schedule(auto); err != nil {
				e.log.Warn("schedule %q: %v", auto.Name, err)
			}
		}
	}
	if len(autos) > 0 {
		e.log.Info("restored %d automations", len(autos))
	}
	return len(autos), nil
}

// Create validates and registers a new automation: mirror first (which
// mints the id), then the durable row, then the time trigger.
func (e *Engine) Create(ctx context.Context, def Definition) (Automation, error) {
	if len(def.Actions) == 0 {
		return Automation{}, fmt.Errorf("automation actions: %w", core.ErrMissingRequired)
	}
	e.mu.RLock()
	for _, action := range def.Actions {
		if _, ok := e.executors[action.Type]; !ok {
			e.mu.RUnlock()
			return Automation{}, fmt.Errorf("action type %q: %w", action.Type, core.ErrInvalidInput)
		}
	}
	e.mu.RUnlock()

	trigger := def.Trigger
	if trigger == "" {
		trigger = core.TriggerManual
	}
	switch trigger {
	case core.TriggerTimeBased:
		if _, err := parseTimeSpec(def.TriggerSpec); err != nil {
			return Automation{}, err
		}
	case core.TriggerEventBased, core.TriggerConditionBased:
		if strings.TrimSpace(def.TriggerSpec) == "" {
			return Automation{}, fmt.Errorf("trigger spec: %w", core.ErrMissingRequired)
		}
	case core.TriggerManual:
	default:
		return Automation{}, fmt.Errorf("trigger type %q: %w", trigger, core.ErrInvalidInput)
	}

	mirror, err := e.store.CreateAutomation(state.AutomationInput{
		Name:         def.Name,
		Description:  def.Description,
		Trigger:      trigger,
		TriggerSpec:  def.TriggerSpec,
		ActionsCount: len(def.Actions),
	})
	if err != nil {
		return Automation{}, err
	}

	auto := Automation{
		ID:          mirror.ID,
		Name:        mirror.Name,
		Description: mirror.Description,
		Trigger:     mirror.Trigger,
		TriggerSpec: mirror.TriggerSpec,
		Actions:     def.Actions,
		Conditions:  def.Conditions,
		Enabled:     true,
		CreatedAt:   mirror.CreatedAt,
	}
	if err := e.insert(ctx, auto); err != nil {
		// a failed insert must not leave the mirror behind
		if derr := e.store.DeleteAutomation(auto.ID); derr != nil {
			e.log.Warn("remove mirror for %s: %v", auto.ID, derr)
		}
		return Automation{}, err
	}
	if auto.Trigger == core.TriggerTimeBased {
		if err := e.schedule(auto); err != nil {
			e.log.Warn("schedule %q: %v", auto.Name, err)
		}
	}
	e.log.Info("automation %q created (%s)", auto.Name, auto.Trigger)
	return auto, nil
}

// CreateFromTemplate instantiates one of the built-in templates.
func (e *Engine) CreateFromTemplate(ctx context.Context, templateID string) (Automation, error) {
	tpl, ok := TemplateByID(templateID)
	if !ok {
		return Automation{}, fmt.Errorf("template %q: %w", templateID, core.ErrRecordNotFound)
	}
	return e.Create(ctx, Definition{
		Name:        tpl.Name,
		Description: tpl.Description,
		Trigger:     tpl.Trigger,
		TriggerSpec: tpl.TriggerSpec,
		Actions:     tpl.Actions,
		Conditions:  tpl.Conditions,
	})
}

// SetEnabled flips the enabled flag, keeping the mirror and the time
// trigger in step.
func (e *Engine) SetEnabled(ctx context.Context, id string, enabled bool) (Automation, error) {
	auto, err := e.Automation(ctx, id)
	if err != nil {
		return Automation{}, err
	}
	if auto.Enabled == enabled {
		return auto, nil
	}
	if _, err := e.db.Conn().ExecContext(ctx,
		`UPDATE automations SET enabled = ? WHERE id = ?`, boolInt(enabled), id); err != nil {
		return Automation{}, fmt.Errorf("set enabled: %w", err)
	}
	auto.Enabled = enabled
	if _, err := e.store.SetAutomationEnabled(id, enabled); err != nil {
		e.log.Warn("mirror enabled flag for %s: %v", id, err)
	}
	if auto.Trigger == core.TriggerTimeBased {
		if enabled {
			if err := e.schedule(auto); err != nil {
				e.log.Warn("schedule %q: %v", auto.Name, err)
			}
		} else {
			e.unschedule(id)
		}
	}
	return auto, nil
}

// Delete removes an automation everywhere. Unknown ids are a no-op.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if _, err := e.db.Conn().ExecContext(ctx,
		`DELETE FROM automations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	e.unschedule(id)
	if err := e.store.DeleteAutomation(id); err != nil {
		e.log.Warn("remove mirror for %s: %v", id, err)
	}
	return nil
}

// Run triggers an automation manually. Disabled automations and unmet
// gate conditions are errors here; the scheduled paths skip silently.
func (e *Engine) Run(ctx context.Context, id string) (RunReport, error) {
	auto, err := e.Automation(ctx, id)
	if err != nil {
		return RunReport{}, err
	}
	if !auto.Enabled {
		return RunReport{}, ErrDisabled
	}
	if !e.conditionsMet(auto.Conditions) {
		return RunReport{}, ErrConditionsNotMet
	}
	report := e.execute(ctx, auto)
	e.recordRun(ctx, auto.ID, report.Success)
	return report, nil
}

// execute runs every action in order and collects per-action results.
// One action failing never stops the ones after it.
func (e *Engine) execute(ctx context.Context, auto Automation) RunReport {
	report := RunReport{
		AutomationID: auto.ID,
		Name:         auto.Name,
		ExecutedAt:   time.Now().UTC(),
		Success:      true,
	}

	for _, action := range auto.Actions {
		if action.DelaySeconds > 0 {
			select {
			case <-ctx.Done():
				report.Success = false
				report.Results = append(report.Results, Result{Action: action.Type, Error: ctx.Err().Error()})
				return report
			case <-time.After(time.Duration(action.DelaySeconds) * time.Second):
			}
		}

		e.mu.RLock()
		exec, ok := e.executors[action.Type]
		e.mu.RUnlock()
		if !ok {
			report.Success = false
			report.Results = append(report.Results, Result{
				Action: action.Type,
				Error:  fmt.Sprintf("no executor for action type %q", action.Type),
			})
			continue
		}

		execCtx, cancel := context.WithTimeout(ctx, actionTimeout)
		message, err := exec.Execute(execCtx, auto.ID, action)
		cancel()

		res := Result{Action: action.Type}
		if err != nil {
			report.Success = false
			res.Error = err.Error()
		} else {
			res.Success = true
			res.Message = message
		}
		report.Results = append(report.Results, res)
	}

	e.log.Info("automation %q ran %d actions (success=%v)", auto.Name, len(report.Results), report.Success)
	return report
}

// recordRun folds a run outcome into the durable row and the mirror.
func (e *Engine) recordRun(ctx context.Context, id string, success bool) {
	inc := 0
	if success {
		inc = 1
	}
	if _, err := e.db.Conn().ExecContext(ctx, `
		UPDATE automations
		SET run_count = run_count + 1, success_count = success_count + ?, last_run = ?
		WHERE id = ?`, inc, time.Now().UTC(), id); err != nil {
		e.log.Error("record run for %s: %v", id, err)
	}
	if _, err := e.store.RecordAutomationRun(id, success); err != nil {
		e.log.Warn("mirror run stats for %s: %v", id, err)
	}
}

// Automation returns one stored definition.
func (e *Engine) Automation(ctx context.Context, id string) (Automation, error) {
	row := e.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, description, trigger_type, trigger_spec, actions, conditions,
		       enabled, run_count, success_count, last_run, created_at
		FROM automations WHERE id = ?`, id)
	auto, err := scanAutomation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Automation{}, core.ErrRecordNotFound
	}
	if err != nil {
		return Automation{}, fmt.Errorf("load automation: %w", err)
	}
	return auto, nil
}

// List returns every stored definition, oldest first.
func (e *Engine) List(ctx context.Context) ([]Automation, error) {
	rows, err := e.db.Conn().QueryContext(ctx, `
		SELECT id, name, description, trigger_type, trigger_spec, actions, conditions,
		       enabled, run_count, success_count, last_run, created_at
		FROM automations ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []Automation
	for rows.Next() {
		auto, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("list automations: %w", err)
		}
		out = append(out, auto)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAutomation(row scanner) (Automation, error) {
	var (
		auto       Automation
		trigger    string
		actions    string
		conditions string
		enabled    int
		lastRun    sql.NullTime
	)
	err := row.Scan(&auto.ID, &auto.Name, &auto.Description, &trigger, &auto.TriggerSpec,
		&actions, &conditions, &enabled, &auto.RunCount, &auto.SuccessCount, &lastRun, &auto.CreatedAt)
	if err != nil {
		return Automation{}, err
	}
	auto.Trigger = core.TriggerType(trigger)
	auto.Enabled = enabled != 0
	if lastRun.Valid {
		t := lastRun.Time.UTC()
		auto.LastRun = &t
	}
	if err := json.Unmarshal([]byte(actions), &auto.Actions); err != nil {
		return Automation{}, fmt.Errorf("actions column: %w", err)
	}
	if err := json.Unmarshal([]byte(conditions), &auto.Conditions); err != nil {
		return Automation{}, fmt.Errorf("conditions column: %w", err)
	}
	return auto, nil
}

func (e *Engine) insert(ctx context.Context, auto Automation) error {
	actions, err := json.Marshal(auto.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	conditions, err := json.Marshal(auto.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	if auto.Conditions == nil {
		conditions = []byte("[]")
	}
	_, err = e.db.Conn().ExecContext(ctx, `
		INSERT INTO automations (id, name, description, trigger_type, trigger_spec, actions,
		                         conditions, enabled, run_count, success_count, last_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, ?)`,
		auto.ID, auto.Name, auto.Description, string(auto.Trigger), auto.TriggerSpec,
		string(actions), string(conditions), boolInt(auto.Enabled), auto.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// Time triggers
// -----------------------------------------------------------------------------

func jobID(id string) string { return "automation:" + id }

// schedule registers the time trigger for auto, replacing any previous
// registration.
func (e *Engine) schedule(auto Automation) error {
	if e.sched == nil {
		return nil
	}
	spec, err := parseTimeSpec(auto.TriggerSpec)
	if err != nil {
		return err
	}
	e.sched.Remove(jobID(auto.ID))
	id := auto.ID
	return e.sched.Register(&scheduler.Job{
		ID:       jobID(id),
		Name:     "automation: " + auto.Name,
		Schedule: spec,
		Handler: func(ctx context.Context) error {
			return e.runScheduled(ctx, id)
		},
	})
}

func (e *Engine) unschedule(id string) {
	if e.sched == nil {
		return
	}
	e.sched.Remove(jobID(id))
}

// runScheduled is the handler behind a time trigger. A disabled automation
// or an unmet gate condition skips the run without error.
func (e *Engine) runScheduled(ctx context.Context, id string) error {
	auto, err := e.Automation(ctx, id)
	if err != nil {
		return err
	}
	if !auto.Enabled || !e.conditionsMet(auto.Conditions) {
		return nil
	}
	report := e.execute(ctx, auto)
	e.recordRun(ctx, auto.ID, report.Success)
	return nil
}

// parseTimeSpec maps a time_based trigger spec to a schedule. Two forms:
// "15:04" runs daily at that wall time, "every 2h" runs on an interval.
func parseTimeSpec(spec string) (scheduler.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d < time.Minute {
			return scheduler.Schedule{}, fmt.Errorf("trigger spec %q: %w", spec, core.ErrInvalidInput)
		}
		return scheduler.Schedule{Kind: scheduler.KindInterval, Every: d}, nil
	}
	if _, err := time.Parse("15:04", spec); err != nil {
		return scheduler.Schedule{}, fmt.Errorf("trigger spec %q: %w", spec, core.ErrInvalidInput)
	}
	return scheduler.Schedule{Kind: scheduler.KindDaily, At: spec}, nil
}
