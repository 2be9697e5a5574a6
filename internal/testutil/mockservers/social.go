package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// SocialServer mocks the hosted social publish service.
type SocialServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	fail      map[string]string // platform -> error message
	published []PublishRequest
}

// PublishRequest is one recorded publish call.
type PublishRequest struct {
	PostID    string   `json:"postId"`
	Platforms []string `json:"platforms"`
}

// NewSocialServer starts a publish service double that succeeds for every
// platform unless FailPlatform is called.
func NewSocialServer(t *testing.T) *SocialServer {
	t.Helper()

	s := &SocialServer{fail: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/social/publish", func(w http.ResponseWriter, r *http.Request) {
		var req PublishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.published = append(s.published, req)
		results := make(map[string]interface{}, len(req.Platforms))
		for _, platform := range req.Platforms {
			if msg, bad := s.fail[platform]; bad {
				results[platform] = map[string]interface{}{"success": false, "error": msg}
			} else {
				results[platform] = map[string]interface{}{
					"success": true,
					"post_id": platform[:2] + "_" + req.PostID,
				}
			}
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"results": results,
		})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the server's base URL.
func (s *SocialServer) URL() string { return s.Server.URL }

// FailPlatform makes the given platform fail with the message.
func (s *SocialServer) FailPlatform(platform, message string) {
	s.mu.Lock()
	s.fail[platform] = message
	s.mu.Unlock()
}

// Published returns the recorded publish calls.
func (s *SocialServer) Published() []PublishRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PublishRequest(nil), s.published...)
}
