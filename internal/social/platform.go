package social

import (
	"fmt"
	"strings"

	"github.com/omnihq/omni/internal/core"
)

// Platform describes one publish target: the identity the dashboard
// renders and the composing rules the publisher enforces.
type Platform struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Color         string `json:"color"`
	MaxCharacters int    `json:"max_characters"`

	SupportsImages   bool `json:"supports_images"`
	SupportsVideos   bool `json:"supports_videos"`
	SupportsLinks    bool `json:"supports_links"`
	SupportsHashtags bool `json:"supports_hashtags"`
	SupportsMentions bool `json:"supports_mentions"`

	// RequiresMedia rejects posts with no media attached.
	RequiresMedia bool `json:"requires_media"`

	// truncates cuts over-limit content at MaxCharacters instead of
	// rejecting it.
	truncates bool

	// idPrefix tags provider-side post ids, e.g. "tw" -> "tw_1756100000".
	idPrefix string
}

var registry = []Platform{
	{
		ID:               "facebook",
		Name:             "Facebook",
		Icon:             "📘",
		Color:            "#1877F2",
		MaxCharacters:    63206,
		SupportsImages:   true,
		SupportsVideos:   true,
		SupportsLinks:    true,
		SupportsHashtags: true,
		SupportsMentions: true,
		idPrefix:         "fb",
	},
	{
		ID:               "twitter",
		Name:             "Twitter",
		Icon:             "🐦",
		Color:            "#1DA1F2",
		MaxCharacters:    280,
		SupportsImages:   true,
		SupportsVideos:   true,
		SupportsLinks:    true,
		SupportsHashtags: true,
		SupportsMentions: true,
		truncates:        true,
		idPrefix:         "tw",
	},
	{
		ID:               "instagram",
		Name:             "Instagram",
		Icon:             "📷",
		Color:            "#E4405F",
		MaxCharacters:    2200,
		SupportsImages:   true,
		SupportsVideos:   true,
		SupportsHashtags: true,
		SupportsMentions: true,
		RequiresMedia:    true,
		idPrefix:         "ig",
	},
	{
		ID:               "linkedin",
		Name:             "LinkedIn",
		Icon:             "💼",
		Color:            "#0077B5",
		MaxCharacters:    3000,
		SupportsImages:   true,
		SupportsVideos:   true,
		SupportsLinks:    true,
		SupportsHashtags: true,
		SupportsMentions: true,
		idPrefix:         "li",
	},
}

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	out := make([]Platform, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves a platform id. Matching is case-insensitive.
func Lookup(id string) (Platform, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range registry {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// Validate rejects a post that cannot be published as composed: an
// unknown platform, or a media-only platform with nothing attached.
func Validate(platforms, mediaURLs []string) error {
	for _, id := range platforms {
		p, ok := Lookup(id)
		if !ok {
			return fmt.Errorf("%s: %w", id, core.ErrPlatformUnknown)
		}
		if p.RequiresMedia && len(mediaURLs) == 0 {
			return fmt.Errorf("%s: %w", p.ID, core.ErrMediaRequired)
		}
	}
	return nil
}

// Compose returns the content as the platform will carry it. Platforms
// that truncate get content cut at their character limit; everything
// else passes through untouched.
func Compose(p Platform, content string) string {
	if !p.truncates {
		return content
	}
	runes := []rune(content)
	if len(runes) <= p.MaxCharacters {
		return content
	}
	return string(runes[:p.MaxCharacters])
}
