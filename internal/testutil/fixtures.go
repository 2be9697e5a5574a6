package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/state"
)

// RandomID generates a random ID for testing.
func RandomID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// TaskFixture returns a valid task input. Overrides apply in order.
func TaskFixture(overrides ...func(*state.TaskInput)) state.TaskInput {
	in := state.TaskInput{
		Title:       "Buy milk",
		Description: "Whole, not skim",
		Priority:    core.PriorityLow,
		Service:     "local",
	}
	for _, o := range overrides {
		o(&in)
	}
	return in
}

// MessageFixture returns a valid message input.
func MessageFixture(overrides ...func(*state.MessageInput)) state.MessageInput {
	in := state.MessageInput{
		Sender:  "alex@example.com",
		Content: "Lunch tomorrow?",
		Service: "gmail",
	}
	for _, o := range overrides {
		o(&in)
	}
	return in
}

// PostFixture returns a valid social post input.
func PostFixture(overrides ...func(*state.PostInput)) state.PostInput {
	in := state.PostInput{
		Content:   "Shipped a new feature today!",
		Platforms: []string{"twitter", "linkedin"},
	}
	for _, o := range overrides {
		o(&in)
	}
	return in
}

// EventFixture returns a calendar event input starting at start.
func EventFixture(start time.Time, overrides ...func(*state.EventInput)) state.EventInput {
	in := state.EventInput{
		Title:   "Team standup",
		Start:   start,
		End:     start.Add(30 * time.Minute),
		Service: "local",
	}
	for _, o := range overrides {
		o(&in)
	}
	return in
}

// ChatReplyFixture returns a gateway-shaped reply for mock servers.
func ChatReplyFixture() core.ChatReply {
	return core.ChatReply{
		Response:    "You have 3 tasks due today.",
		Intent:      "check_schedule",
		Confidence:  0.92,
		Suggestions: []string{"Show my tasks", "What's next?"},
	}
}
