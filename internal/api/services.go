package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/omnihq/omni/internal/connectors"
)

// ServiceResponse describes one registered connector.
type ServiceResponse struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	connected := make(map[string]bool)
	for _, name := range s.connectors.Connected() {
		connected[name] = true
	}

	names := s.connectors.Names()
	services := make([]ServiceResponse, len(names))
	for i, name := range names {
		services[i] = ServiceResponse{Name: name, Connected: connected[name]}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"services": services,
		"count":    len(services),
	})
}

// handleConnectService authenticates a service with the supplied
// credentials. A connector that fails its verification read stays
// disconnected and the failure comes back to the caller.
func (s *Server) handleConnectService(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Service      string            `json:"service"`
		Token        string            `json:"token"`
		RefreshToken string            `json:"refresh_token"`
		Expiry       *time.Time        `json:"expiry"`
		Extra        map[string]string `json:"extra"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.Service == "" {
		s.respondError(w, http.StatusBadRequest, "service required")
		return
	}

	creds := connectors.Credentials{
		Token:        input.Token,
		RefreshToken: input.RefreshToken,
		Expiry:       input.Expiry,
		Extra:        input.Extra,
	}
	if err := s.connectors.Connect(r.Context(), input.Service, creds); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "connected to " + input.Service,
		"service": input.Service,
	})
}

func (s *Server) handleDisconnectService(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Service string `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.Service == "" {
		s.respondError(w, http.StatusBadRequest, "service required")
		return
	}

	if err := s.connectors.Disconnect(r.Context(), input.Service); err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "disconnected from " + input.Service,
		"service": input.Service,
	})
}

// handleSyncServices pulls tasks and messages from every connected
// service into the local collections. Local records win on id collisions,
// so a pull never clobbers an optimistic mutation.
func (s *Server) handleSyncServices(w http.ResponseWriter, r *http.Request) {
	added, err := s.connectors.Sync(r.Context(), s.state)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "sync complete",
		"added":   added,
	})
}
