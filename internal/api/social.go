package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/omnihq/omni/internal/social"
	"github.com/omnihq/omni/internal/state"
)

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.state.Posts()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"posts": posts,
		"count": len(posts),
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Content     string     `json:"content"`
		Platforms   []string   `json:"platforms"`
		MediaURLs   []string   `json:"media_urls"`
		ScheduledAt *time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if len(input.Platforms) > 0 {
		if err := social.Validate(input.Platforms, input.MediaURLs); err != nil {
			s.fail(w, err)
			return
		}
	}

	post, err := s.state.AddSocialPost(state.PostInput{
		Content:     input.Content,
		Platforms:   input.Platforms,
		MediaURLs:   input.MediaURLs,
		ScheduledAt: input.ScheduledAt,
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, post)
}

// handlePublish settles a post across its platforms synchronously and
// returns the per-platform results. One platform failing never blocks
// another; the post's status reflects whether any platform accepted it.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "publisher not configured")
		return
	}

	var input struct {
		PostID    string   `json:"post_id"`
		Platforms []string `json:"platforms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.PostID == "" {
		s.respondError(w, http.StatusBadRequest, "post_id required")
		return
	}

	post, err := s.state.Post(input.PostID)
	if err != nil {
		s.fail(w, err)
		return
	}

	platforms := input.Platforms
	if len(platforms) == 0 {
		platforms = post.Platforms
	}
	if err := social.Validate(platforms, post.MediaURLs); err != nil {
		s.fail(w, err)
		return
	}

	results, err := s.publisher.Publish(r.Context(), input.PostID, platforms)
	if err != nil {
		s.fail(w, err)
		return
	}

	post, err = s.state.RecordPublishResults(input.PostID, results)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"post":    post,
		"results": results,
	})
}

// handleListPlatforms returns the publishing catalog with per-platform
// connection status.
func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	connected, err := s.state.ConnectedPlatforms()
	if err != nil {
		s.fail(w, err)
		return
	}
	isConnected := make(map[string]bool, len(connected))
	for _, name := range connected {
		isConnected[name] = true
	}

	type platformResponse struct {
		social.Platform
		Connected bool `json:"connected"`
	}

	catalog := social.Platforms()
	platforms := make([]platformResponse, len(catalog))
	for i, p := range catalog {
		platforms[i] = platformResponse{Platform: p, Connected: isConnected[p.ID]}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"platforms": platforms,
		"count":     len(platforms),
	})
}
