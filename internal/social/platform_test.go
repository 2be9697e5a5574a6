package social

import (
	"errors"
	"strings"
	"testing"

	"github.com/omnihq/omni/internal/core"
)

// =============================================================================
// Platform registry
// =============================================================================

func TestLookup_Metadata(t *testing.T) {
	tests := []struct {
		id       string
		name     string
		color    string
		maxChars int
		links    bool
		media    bool
	}{
		{"facebook", "Facebook", "#1877F2", 63206, true, false},
		{"twitter", "Twitter", "#1DA1F2", 280, true, false},
		{"instagram", "Instagram", "#E4405F", 2200, false, true},
		{"linkedin", "LinkedIn", "#0077B5", 3000, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, ok := Lookup(tt.id)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.id)
			}
			if p.Name != tt.name {
				t.Errorf("Name = %q, want %q", p.Name, tt.name)
			}
			if p.Color != tt.color {
				t.Errorf("Color = %q, want %q", p.Color, tt.color)
			}
			if p.MaxCharacters != tt.maxChars {
				t.Errorf("MaxCharacters = %d, want %d", p.MaxCharacters, tt.maxChars)
			}
			if p.SupportsLinks != tt.links {
				t.Errorf("SupportsLinks = %v, want %v", p.SupportsLinks, tt.links)
			}
			if p.RequiresMedia != tt.media {
				t.Errorf("RequiresMedia = %v, want %v", p.RequiresMedia, tt.media)
			}
			if p.Icon == "" {
				t.Error("Icon is empty")
			}
		})
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	p, ok := Lookup("  TwItTeR ")
	if !ok {
		t.Fatal("Lookup should tolerate case and whitespace")
	}
	if p.ID != "twitter" {
		t.Errorf("ID = %q, want twitter", p.ID)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("myspace"); ok {
		t.Error("Lookup(myspace) should not resolve")
	}
}

func TestPlatforms_DisplayOrder(t *testing.T) {
	want := []string{"facebook", "twitter", "instagram", "linkedin"}
	got := Platforms()
	if len(got) != len(want) {
		t.Fatalf("Platforms() returned %d entries, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.ID != want[i] {
			t.Errorf("Platforms()[%d] = %q, want %q", i, p.ID, want[i])
		}
	}
}

// =============================================================================
// Composing
// =============================================================================

func TestCompose(t *testing.T) {
	twitter, _ := Lookup("twitter")
	linkedin, _ := Lookup("linkedin")

	tests := []struct {
		name     string
		platform Platform
		content  string
		wantLen  int
	}{
		{"twitter short passes through", twitter, "ship it", 7},
		{"twitter long truncates", twitter, strings.Repeat("x", 300), 280},
		{"linkedin long passes through", linkedin, strings.Repeat("x", 5000), 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.platform, tt.content)
			if len([]rune(got)) != tt.wantLen {
				t.Errorf("Compose() length = %d, want %d", len([]rune(got)), tt.wantLen)
			}
			if !strings.HasPrefix(tt.content, got) {
				t.Error("Compose() should only ever cut the tail")
			}
		})
	}
}

func TestCompose_MultibyteBoundary(t *testing.T) {
	twitter, _ := Lookup("twitter")
	content := strings.Repeat("é", 300)
	got := Compose(twitter, content)
	if n := len([]rune(got)); n != 280 {
		t.Errorf("Compose() rune length = %d, want 280", n)
	}
	if !strings.HasPrefix(got, "é") {
		t.Error("Compose() mangled multibyte content")
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		media     []string
		wantErr   error
	}{
		{"known platforms", []string{"twitter", "linkedin"}, nil, nil},
		{"unknown platform", []string{"twitter", "myspace"}, nil, core.ErrPlatformUnknown},
		{"instagram without media", []string{"instagram"}, nil, core.ErrMediaRequired},
		{"instagram with media", []string{"instagram"}, []string{"https://cdn.example.com/a.jpg"}, nil},
		{"empty list", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.platforms, tt.media)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
