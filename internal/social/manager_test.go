package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omnihq/omni/internal/core"
)

// fakeSource hands the manager a canned post and connection set.
type fakeSource struct {
	post      core.SocialPost
	postErr   error
	platforms []string
	platErr   error
}

func (f *fakeSource) Post(id string) (core.SocialPost, error) {
	if f.postErr != nil {
		return core.SocialPost{}, f.postErr
	}
	return f.post, nil
}

func (f *fakeSource) ConnectedPlatforms() ([]string, error) {
	return f.platforms, f.platErr
}

func testPost() core.SocialPost {
	return core.SocialPost{
		ID:        "post-1",
		Content:   "Shipping the new planner today",
		Platforms: []string{"twitter", "facebook"},
		MediaURLs: []string{"https://cdn.example.com/planner.png"},
	}
}

func TestManager_Publish_LocalFanout(t *testing.T) {
	source := &fakeSource{post: testPost(), platforms: []string{"twitter"}}
	mgr := NewManager(source, nil)

	results, err := mgr.Publish(context.Background(), "post-1", []string{"twitter", "instagram", "myspace"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if tw := results["twitter"]; !tw.Success || !strings.HasPrefix(tw.PlatformID, "tw_") {
		t.Errorf("twitter result = %+v, want local tw_ id", tw)
	}
	if ig := results["instagram"]; ig.Success || ig.Error != "platform instagram not connected" {
		t.Errorf("instagram result = %+v, want not-connected failure", ig)
	}
	if ms := results["myspace"]; ms.Success || ms.Error != "unsupported platform" {
		t.Errorf("myspace result = %+v, want unsupported failure", ms)
	}
}

func TestManager_Publish_DefaultsToPostPlatforms(t *testing.T) {
	source := &fakeSource{post: testPost(), platforms: []string{"twitter", "facebook"}}
	mgr := NewManager(source, nil)

	results, err := mgr.Publish(context.Background(), "post-1", nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want the post's 2 platforms", len(results))
	}
	for _, platform := range []string{"twitter", "facebook"} {
		if !results[platform].Success {
			t.Errorf("%s result = %+v, want success", platform, results[platform])
		}
	}
}

func TestManager_Publish_InstagramWithoutMedia(t *testing.T) {
	post := testPost()
	post.MediaURLs = nil
	source := &fakeSource{post: post, platforms: []string{"instagram"}}
	mgr := NewManager(source, nil)

	results, err := mgr.Publish(context.Background(), "post-1", []string{"instagram"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res := results["instagram"]; res.Success || res.Error != "Instagram requires media content" {
		t.Errorf("instagram result = %+v, want media-required failure", res)
	}
}

func TestManager_Publish_RemoteService(t *testing.T) {
	backend := &publishServer{}
	client := newPublishClient(t, backend)
	source := &fakeSource{post: testPost(), platforms: []string{"twitter", "linkedin"}}
	mgr := NewManager(source, client)

	results, err := mgr.Publish(context.Background(), "post-1", []string{"twitter", "linkedin", "facebook"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if tw := results["twitter"]; !tw.Success || tw.PlatformID != "tw_1756100000" {
		t.Errorf("twitter result = %+v, want remote id", tw)
	}
	if li := results["linkedin"]; li.Success || li.Error != "token expired" {
		t.Errorf("linkedin result = %+v, want remote failure", li)
	}
	if fb := results["facebook"]; fb.Success || fb.Error != "platform facebook not connected" {
		t.Errorf("facebook result = %+v, want not-connected failure", fb)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.lastReq.Platforms) != 2 {
		t.Errorf("service saw %d platforms, want only the 2 connected ones", len(backend.lastReq.Platforms))
	}
}

func TestManager_Publish_RemoteDownBurnsBatch(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	source := &fakeSource{post: testPost(), platforms: []string{"twitter", "facebook"}}
	mgr := NewManager(source, NewClient(ClientConfig{BaseURL: url}))

	results, err := mgr.Publish(context.Background(), "post-1", []string{"twitter", "facebook"})
	if err != nil {
		t.Fatalf("Publish() error = %v, a dead service must still settle the post", err)
	}
	for _, platform := range []string{"twitter", "facebook"} {
		res := results[platform]
		if res.Success || res.Error == "" {
			t.Errorf("%s result = %+v, want transport failure recorded", platform, res)
		}
	}
}

func TestManager_Publish_PostNotFound(t *testing.T) {
	source := &fakeSource{postErr: core.ErrRecordNotFound}
	mgr := NewManager(source, nil)

	if _, err := mgr.Publish(context.Background(), "ghost", []string{"twitter"}); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("Publish() error = %v, want ErrRecordNotFound", err)
	}
}

func TestManager_Publish_StoreNotReady(t *testing.T) {
	source := &fakeSource{post: testPost(), platErr: core.ErrNotReady}
	mgr := NewManager(source, nil)

	if _, err := mgr.Publish(context.Background(), "post-1", []string{"twitter"}); !errors.Is(err, core.ErrNotReady) {
		t.Fatalf("Publish() error = %v, want ErrNotReady", err)
	}
}
