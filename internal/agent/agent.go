package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/gateway"
	"github.com/omnihq/omni/internal/logging"
)

// Gateway is the remote intelligence surface the assistant fronts.
type Gateway interface {
	Ask(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error)
	IsConfigured() bool
}

// asyncGateway is satisfied by *gateway.Client. Gateways that expose the
// cancellable handle get asked through it so the caller's cancellation
// settles the request with ErrCallCancelled instead of leaving it racing.
type asyncGateway interface {
	AskAsync(ctx context.Context, message string, userContext core.UserContext, sessionID string) *gateway.Call
}

// Recaller surfaces semantically similar past items for search intents.
// Optional; absence just means no memory hits.
type Recaller interface {
	Recall(ctx context.Context, query string, limit int) ([]string, error)
}

// Assistant answers chat messages. It asks the gateway first and degrades
// to local pattern analysis when the gateway is unconfigured or failing,
// so a reply is always produced unless the caller's context is gone.
type Assistant struct {
	gateway  Gateway
	recaller Recaller
	history  *History
	log      *logging.Logger
}

// NewAssistant creates an assistant over an optional gateway.
func NewAssistant(gateway Gateway) *Assistant {
	return &Assistant{
		gateway: gateway,
		history: NewHistory(),
		log:     logging.Named("agent"),
	}
}

// SetRecaller wires the semantic memory lookup used for search intents.
func (a *Assistant) SetRecaller(r Recaller) {
	a.recaller = r
}

// History exposes the session keeper.
func (a *Assistant) History() *History {
	return a.history
}

// Ask produces a reply for one user message. An error is returned only
// when the context is done; every other failure degrades to a local
// answer.
func (a *Assistant) Ask(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error) {
	if err := ctx.Err(); err != nil {
		return core.ChatReply{}, err
	}

	cls := Classify(message)

	if a.gateway != nil && a.gateway.IsConfigured() {
		reply, err := a.askGateway(ctx, message, userContext, sessionID)
		if err == nil {
			if reply.Intent == "" {
				reply.Intent = cls.Intent
				reply.Confidence = cls.Confidence
			}
			if len(reply.Suggestions) == 0 {
				reply.Suggestions = Suggest(message)
			}
			a.history.Record(sessionID, message, reply.Response)
			return reply, nil
		}
		if errors.Is(err, core.ErrCallCancelled) {
			return core.ChatReply{}, err
		}
		a.log.Warn("gateway ask failed, answering locally: %v", err)
	}

	if err := ctx.Err(); err != nil {
		return core.ChatReply{}, err
	}

	reply := a.localReply(ctx, message, cls)
	a.history.Record(sessionID, message, reply.Response)
	return reply, nil
}

// askGateway issues the remote request, through the cancellable handle
// when the gateway offers one. Cancelling ctx settles the in-flight call
// rather than orphaning it.
func (a *Assistant) askGateway(ctx context.Context, message string, userContext core.UserContext, sessionID string) (core.ChatReply, error) {
	ag, ok := a.gateway.(asyncGateway)
	if !ok {
		return a.gateway.Ask(ctx, message, userContext, sessionID)
	}

	call := ag.AskAsync(ctx, message, userContext, sessionID)
	select {
	case out := <-call.Result():
		return out.Reply, out.Err
	case <-ctx.Done():
		call.Cancel()
		out := <-call.Result()
		return out.Reply, out.Err
	}
}

// localReply builds the degraded answer from the classification alone.
func (a *Assistant) localReply(ctx context.Context, message string, cls Classification) core.ChatReply {
	reply := core.ChatReply{
		Response:    responseFor(cls.Intent),
		Intent:      cls.Intent,
		Confidence:  cls.Confidence,
		Suggestions: Suggest(message),
	}

	if cls.Intent == IntentSearchInfo && a.recaller != nil {
		hits, err := a.recaller.Recall(ctx, message, 3)
		if err != nil {
			a.log.Debug("memory recall failed: %v", err)
		} else if len(hits) > 0 {
			var b strings.Builder
			b.WriteString("Here's what I found in your memory:")
			for _, h := range hits {
				b.WriteString("\n- ")
				b.WriteString(h)
			}
			reply.Response = b.String()
			reply.ActionsTaken = append(reply.ActionsTaken, "searched memory")
		}
	}

	return reply
}

func responseFor(intent string) string {
	switch intent {
	case IntentCreateTask:
		return "I can set that up as a task. Open the tasks view to confirm the details like priority and due date."
	case IntentScheduleMeeting:
		return "I can help you schedule that. Add it from the calendar view and I'll keep reminders on it."
	case IntentSendMessage:
		return "I can help with that message. The messages view shows your connected services."
	case IntentPostSocial:
		return "I can prepare that post. Pick the platforms on the social view and I'll publish it there."
	case IntentCheckSchedule:
		return "Your dashboard shows today's events and pending tasks."
	case IntentSearchInfo:
		return "The assistant service is offline right now, so I couldn't run a full search. I've noted what you're looking for."
	case IntentAutomateWorkflow:
		return "I can set up an automation for that. The automations view has ready-made templates to start from."
	default:
		return "I've noted your message. The assistant service is offline, so I'm answering with local analysis only."
	}
}
