package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/omnihq/omni/internal/core"
)

const gmailUser = "me"

// Gmail reads the inbox as a message source. It fetches recent messages
// with metadata headers only; bodies never leave Google.
type Gmail struct {
	oauth   *oauth2.Config
	options []option.ClientOption

	mu        sync.RWMutex
	svc       *gmail.Service
	email     string
	connected bool
}

// NewGmail creates a disconnected Gmail connector.
func NewGmail(auth GoogleOAuth, opts ...option.ClientOption) *Gmail {
	return &Gmail{
		oauth:   auth.config(gmail.GmailReadonlyScope),
		options: opts,
	}
}

// Name returns the service identifier
func (g *Gmail) Name() string { return "gmail" }

// Connect builds the API client and verifies access by fetching the
// profile, which also yields the account address.
func (g *Gmail) Connect(ctx context.Context, creds Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("gmail token: %w", core.ErrMissingRequired)
	}

	ts := googleTokenSource(ctx, g.oauth, creds)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.options...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create gmail service: %w", err)
	}

	profile, err := svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("verify gmail access: %w", err)
	}

	g.mu.Lock()
	g.svc = svc
	g.email = profile.EmailAddress
	g.connected = true
	g.mu.Unlock()
	return nil
}

// Disconnect drops the API client.
func (g *Gmail) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	g.svc = nil
	g.email = ""
	g.connected = false
	g.mu.Unlock()
	return nil
}

// Connected reports whether Connect has succeeded.
func (g *Gmail) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// EmailAddress returns the connected account address.
func (g *Gmail) EmailAddress() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.email
}

// Messages lists the ten most recent messages with subject, sender, and
// read state. Messages whose detail fetch fails are skipped.
func (g *Gmail) Messages(ctx context.Context) ([]core.Message, error) {
	g.mu.RLock()
	svc, email := g.svc, g.email
	connected := g.connected
	g.mu.RUnlock()
	if !connected || svc == nil {
		return nil, fmt.Errorf("gmail: %w", core.ErrServiceNotConnected)
	}

	list, err := svc.Users.Messages.List(gmailUser).MaxResults(10).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	out := make([]core.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get(gmailUser, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).
			Do()
		if err != nil {
			continue
		}
		out = append(out, gmailToCore(msg, email))
	}
	return out, nil
}

func gmailToCore(msg *gmail.Message, recipient string) core.Message {
	out := core.Message{
		ID:        msg.Id,
		Recipient: recipient,
		Service:   "gmail",
		Sync:      core.SyncSynced,
	}

	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			out.Unread = true
			break
		}
	}

	var subject string
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				out.Sender = header.Value
			case "Subject":
				subject = header.Value
			case "Date":
				if ts, err := parseMailDate(header.Value); err == nil {
					out.Timestamp = ts
				}
			}
		}
	}

	out.Content = subject
	if out.Content == "" {
		out.Content = msg.Snippet
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.UnixMilli(msg.InternalDate).UTC()
	}
	return out
}

// parseMailDate tries the date formats mail clients actually emit.
func parseMailDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC822Z,
	}
	for _, format := range formats {
		if ts, err := time.Parse(format, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
