// Package social publishes composed posts to their platforms. A publish
// fans out to every requested platform and each platform settles on its
// own: one failing never blocks another, and the per-platform results
// land back on the post. Delivery goes through a hosted publish service
// when one is configured and an in-process publisher otherwise.
package social

import (
	"context"
	"fmt"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/logging"
)

// PostSource supplies the post being published and the set of connected
// platforms. The state store satisfies this.
type PostSource interface {
	Post(id string) (core.SocialPost, error)
	ConnectedPlatforms() ([]string, error)
}

// Manager fans one publish out across platforms and collects results.
type Manager struct {
	source PostSource
	local  *LocalPublisher
	remote *Client
	log    *logging.Logger
}

// NewManager creates the publish manager. remote may be nil or
// unconfigured, in which case every publish settles locally.
func NewManager(source PostSource, remote *Client) *Manager {
	return &Manager{
		source: source,
		local:  NewLocalPublisher(),
		remote: remote,
		log:    logging.Named("social"),
	}
}

// Publish settles one post across the given platforms, falling back to
// the platforms composed on the post when none are passed. Per-platform
// failures come back inside the result map; the error return is reserved
// for not being able to load the post at all.
func (m *Manager) Publish(ctx context.Context, postID string, platforms []string) (map[string]core.PublishResult, error) {
	post, err := m.source.Post(postID)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", postID, err)
	}
	if len(platforms) == 0 {
		platforms = post.Platforms
	}

	names, err := m.source.ConnectedPlatforms()
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", postID, err)
	}
	connected := make(map[string]bool, len(names))
	for _, n := range names {
		connected[n] = true
	}

	results := make(map[string]core.PublishResult, len(platforms))
	var eligible []string
	for _, id := range platforms {
		if _, ok := Lookup(id); !ok {
			results[id] = core.PublishResult{Error: "unsupported platform"}
			continue
		}
		if !connected[id] {
			results[id] = core.PublishResult{Error: fmt.Sprintf("platform %s not connected", id)}
			continue
		}
		eligible = append(eligible, id)
	}

	switch {
	case len(eligible) == 0:
	case m.remote.IsConfigured():
		m.publishRemote(ctx, postID, eligible, results)
	default:
		for _, id := range eligible {
			results[id] = m.local.Publish(id, post)
		}
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	m.log.Info("post %s settled on %d/%d platforms", postID, ok, len(results))
	return results, nil
}

// publishRemote sends the whole eligible batch in one call. A transport
// failure burns every platform in the batch with the same error; the
// post still settles.
func (m *Manager) publishRemote(ctx context.Context, postID string, platforms []string, results map[string]core.PublishResult) {
	remote, err := m.remote.Publish(ctx, postID, platforms)
	if err != nil {
		m.log.Warn("publish service: %v", err)
		for _, id := range platforms {
			results[id] = core.PublishResult{Error: err.Error()}
		}
		return
	}
	for _, id := range platforms {
		res, ok := remote[id]
		if !ok {
			res = core.PublishResult{Error: "no result from publish service"}
		}
		results[id] = res
	}
}
