package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/omnihq/omni/internal/core"
)

func gatewayServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestClient_Ask_Success(t *testing.T) {
	var gotReq Request
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{
			Success:     true,
			Response:    "Task created.",
			Intent:      "create_task",
			Confidence:  0.7,
			Suggestions: []string{"Set a reminder for this task"},
		})
	})

	uc := core.UserContext{TimeOfDay: core.TimeMorning, EnergyLevel: core.EnergyHigh}
	reply, err := client.Ask(context.Background(), "add a task", uc, "session-1")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if gotReq.Message != "add a task" || gotReq.SessionID != "session-1" {
		t.Errorf("request = %+v", gotReq)
	}
	if reply.Response != "Task created." || reply.Intent != "create_task" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", reply.Confidence)
	}
}

func TestClient_Ask_HTTPError(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})

	if _, err := client.Ask(context.Background(), "hi", core.UserContext{}, "s"); err == nil {
		t.Error("Ask() should error on a non-200 response")
	}
}

func TestClient_Ask_GatewayRejection(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: false, Response: "rate limited"})
	})

	if _, err := client.Ask(context.Background(), "hi", core.UserContext{}, "s"); err == nil {
		t.Error("Ask() should error when the gateway reports success=false")
	}
}

func TestClient_Ask_Unconfigured(t *testing.T) {
	client := NewClient(Config{})

	if client.IsConfigured() {
		t.Error("IsConfigured() = true with no URL")
	}
	if _, err := client.Ask(context.Background(), "hi", core.UserContext{}, "s"); !errors.Is(err, core.ErrGatewayUnavailable) {
		t.Errorf("Ask() error = %v, want ErrGatewayUnavailable", err)
	}
}

func TestClient_Ask_SettlesWithinTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) // consume the body so the server can observe the disconnect
		<-r.Context().Done()        // hang until the client gives up
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Ask(context.Background(), "hi", core.UserContext{}, "s")
	if err == nil {
		t.Fatal("Ask() should error when the gateway hangs")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Ask() took %v; the call must settle within the timeout", elapsed)
	}
}

func TestClient_AskAsync_Cancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) // consume the body so the server can observe the disconnect
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 10 * time.Second})

	call := client.AskAsync(context.Background(), "hi", core.UserContext{}, "s")
	call.Cancel()

	select {
	case out := <-call.Result():
		if !errors.Is(out.Err, core.ErrCallCancelled) {
			t.Errorf("outcome error = %v, want ErrCallCancelled", out.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call never settled")
	}

	// Cancel after settle is harmless.
	call.Cancel()
}

func TestClient_AskAsync_Delivers(t *testing.T) {
	client := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: true, Response: "hello back"})
	})

	call := client.AskAsync(context.Background(), "hi", core.UserContext{}, "s")
	select {
	case out := <-call.Result():
		if out.Err != nil {
			t.Fatalf("outcome error = %v", out.Err)
		}
		if out.Reply.Response != "hello back" {
			t.Errorf("reply = %+v", out.Reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call never settled")
	}
}
