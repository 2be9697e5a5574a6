package gateway

import (
	"context"
	"fmt"

	"github.com/omnihq/omni/internal/core"
)

// Outcome is the settled result of an asynchronous gateway call.
type Outcome struct {
	Reply core.ChatReply
	Err   error
}

// Call is one in-flight gateway request. The result channel delivers exactly
// one Outcome; Cancel settles it early with ErrCallCancelled.
type Call struct {
	result chan Outcome
	cancel context.CancelFunc
}

// AskAsync starts a gateway request and returns its handle. A superseded
// handle can be cancelled without affecting later calls.
func (c *Client) AskAsync(ctx context.Context, message string, userContext core.UserContext, sessionID string) *Call {
	ctx, cancel := context.WithCancel(ctx)
	call := &Call{
		result: make(chan Outcome, 1),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		reply, err := c.Ask(ctx, message, userContext, sessionID)
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", core.ErrCallCancelled, ctx.Err())
		}
		call.result <- Outcome{Reply: reply, Err: err}
	}()

	return call
}

// Result delivers the settled outcome. The channel is buffered; an abandoned
// handle never blocks its worker.
func (call *Call) Result() <-chan Outcome {
	return call.result
}

// Cancel aborts the in-flight request. Safe to call more than once and after
// the call has settled.
func (call *Call) Cancel() {
	call.cancel()
}
