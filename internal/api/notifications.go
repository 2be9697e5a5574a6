package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/omnihq/omni/internal/notifications"
)

// NotificationsAPI handles notification endpoints
type NotificationsAPI struct {
	service *notifications.Service
}

// NewNotificationsAPI creates a new notifications API
func NewNotificationsAPI(service *notifications.Service) *NotificationsAPI {
	return &NotificationsAPI{service: service}
}

// RegisterRoutes mounts the notification routes on the API router.
func (api *NotificationsAPI) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", api.handleGetNotifications)
		r.Post("/", api.handleCreateNotification)
		r.Get("/unread-count", api.handleGetUnreadCount)
		r.Get("/stats", api.handleGetNotificationStats)
		r.Post("/read-all", api.handleMarkAllNotificationsRead)
		r.Get("/{id}", api.handleGetNotification)
		r.Post("/{id}/read", api.handleMarkNotificationRead)
		r.Post("/{id}/dismiss", api.handleDismissNotification)
	})
}

// handleGetNotifications returns notifications with optional filters
func (api *NotificationsAPI) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	filter := notifications.NotificationFilter{}

	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = notifications.NotificationType(t)
	}
	if u := r.URL.Query().Get("urgency"); u != "" {
		urgency, _ := strconv.Atoi(u)
		filter.Urgency = urgency
	}
	if src := r.URL.Query().Get("source"); src != "" {
		filter.Source = src
	}
	if read := r.URL.Query().Get("read"); read != "" {
		b := read == "true"
		filter.Read = &b
	}
	if dismissed := r.URL.Query().Get("dismissed"); dismissed != "" {
		b := dismissed == "true"
		filter.Dismissed = &b
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		filter.Limit, _ = strconv.Atoi(l)
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		filter.Offset, _ = strconv.Atoi(o)
	}

	notifs, err := api.service.List(r.Context(), filter)
	if err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifs,
		"count":         len(notifs),
	})
}

// handleGetNotification returns a single notification
func (api *NotificationsAPI) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	notif, err := api.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, notif)
}

// handleCreateNotification creates a notification directly, mostly for
// automations and local tooling.
func (api *NotificationsAPI) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notifications.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Title == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}
	if req.Type == "" {
		req.Type = notifications.NotifySystem
	}

	notif, err := api.service.Create(r.Context(), req)
	if err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusCreated, notif)
}

// handleMarkNotificationRead marks a notification as read
func (api *NotificationsAPI) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := api.service.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// handleMarkAllNotificationsRead marks all notifications as read
func (api *NotificationsAPI) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := api.service.MarkAllRead(r.Context()); err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "all marked as read"})
}

// handleDismissNotification dismisses a notification
func (api *NotificationsAPI) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if err := api.service.Dismiss(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "dismissed"})
}

// handleGetUnreadCount returns the count of unread notifications
func (api *NotificationsAPI) handleGetUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := api.service.UnreadCount(r.Context())
	if err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handleGetNotificationStats returns notification statistics
func (api *NotificationsAPI) handleGetNotificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.service.Stats(r.Context())
	if err != nil {
		respondJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// respondJSON writes a JSON response (standalone version for sub-APIs)
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
