// Package connectors integrates external task, mail, and chat services.
// Each connector authenticates independently and exposes what it can do
// through capability interfaces; the Manager routes, aggregates, and keeps
// credentials so connections survive a restart.
package connectors

import (
	"context"
	"sort"
	"time"

	"github.com/omnihq/omni/internal/core"
)

// Credentials carries what a connector needs to authenticate. Token-auth
// services use Token alone; OAuth services also carry the refresh token
// and expiry. Extra holds service-specific settings such as the Slack
// channel to read.
type Credentials struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	Expiry       *time.Time        `json:"expiry,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Connector is the minimal contract every service integration satisfies.
type Connector interface {
	// Name is the stable service identifier ("todoist", "gmail", ...).
	Name() string
	// Connect authenticates against the service and verifies access with a
	// cheap read. A connector stays disconnected when Connect fails.
	Connect(ctx context.Context, creds Credentials) error
	// Disconnect drops the session. It never fails against the network;
	// remote token revocation is the user's affair.
	Disconnect(ctx context.Context) error
	// Connected reports whether Connect has succeeded.
	Connected() bool
}

// TaskSource is implemented by connectors that manage tasks.
type TaskSource interface {
	Connector
	Tasks(ctx context.Context) ([]core.Task, error)
	CreateTask(ctx context.Context, task core.Task) (core.Task, error)
	CompleteTask(ctx context.Context, id string) error
}

// MessageSource is implemented by connectors that read messages.
type MessageSource interface {
	Connector
	Messages(ctx context.Context) ([]core.Message, error)
}

func priorityRank(p core.Priority) int {
	switch p {
	case core.PriorityUrgent:
		return 4
	case core.PriorityHigh:
		return 3
	case core.PriorityMedium:
		return 2
	default:
		return 1
	}
}

// sortTasks orders most urgent first, then earliest due; undated tasks sink
// below dated ones of the same priority.
func sortTasks(tasks []core.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := priorityRank(tasks[i].Priority), priorityRank(tasks[j].Priority)
		if ri != rj {
			return ri > rj
		}
		di, dj := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
}

// sortMessages orders newest first.
func sortMessages(messages []core.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
}
