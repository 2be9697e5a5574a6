package state

import (
	"time"

	"github.com/omnihq/omni/internal/core"
)

// Snapshot is the durable projection of the container. It carries the
// collections worth keeping across restarts; chat history and automations
// are deliberately absent (chat is per-session, automations live in their
// own table and re-register with the engine at startup).
//
// Pending and completed tasks are serialized as two lists for compatibility
// with older snapshot files, then folded back into the single task
// collection on restore.
type Snapshot struct {
	UserContext        core.UserContext     `json:"user_context"`
	Tasks              []core.Task          `json:"tasks"`
	CompletedTasks     []core.Task          `json:"completed_tasks"`
	Messages           []core.Message       `json:"messages"`
	Posts              []core.SocialPost    `json:"social_posts"`
	Events             []core.CalendarEvent `json:"calendar_events,omitempty"`
	ConnectedPlatforms []string             `json:"connected_platforms"`
	Metrics            core.LifeMetrics     `json:"life_metrics"`
	Theme              core.Theme           `json:"theme,omitempty"`
	SavedAt            time.Time            `json:"saved_at"`
}

// snapshotLocked projects the current state. Caller holds s.mu.
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		UserContext:        s.userContext,
		ConnectedPlatforms: s.platformsLocked(),
		Metrics:            s.metrics.Clone(),
		Theme:              s.theme,
		SavedAt:            time.Now().UTC(),
	}
	for _, t := range s.tasks {
		if t.Completed {
			snap.CompletedTasks = append(snap.CompletedTasks, t)
		} else {
			snap.Tasks = append(snap.Tasks, t)
		}
	}
	snap.Messages = append([]core.Message(nil), s.messages...)
	snap.Posts = append([]core.SocialPost(nil), s.posts...)
	snap.Events = append([]core.CalendarEvent(nil), s.events...)
	return snap
}

// restoreLocked seeds state from a loaded snapshot. Caller holds s.mu.
// Chat history and automations are never part of the projection and stay
// empty regardless of what the file contains.
func (s *Store) restoreLocked(snap *Snapshot) {
	s.userContext = snap.UserContext
	s.tasks = nil
	s.tasks = append(s.tasks, snap.Tasks...)
	s.tasks = append(s.tasks, snap.CompletedTasks...)
	s.messages = append([]core.Message(nil), snap.Messages...)
	s.posts = append([]core.SocialPost(nil), snap.Posts...)
	s.events = append([]core.CalendarEvent(nil), snap.Events...)
	s.platforms = make(map[string]time.Time, len(snap.ConnectedPlatforms))
	for _, name := range snap.ConnectedPlatforms {
		s.platforms[name] = snap.SavedAt
	}
	if snap.Metrics != nil {
		s.metrics = snap.Metrics.Clone()
	}
	if snap.Theme != "" {
		s.theme = snap.Theme
	}
}
