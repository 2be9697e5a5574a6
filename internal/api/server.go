// Package api provides the HTTP API server for Omni.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/omnihq/omni/internal/automation"
	"github.com/omnihq/omni/internal/connectors"
	"github.com/omnihq/omni/internal/core"
	"github.com/omnihq/omni/internal/intelligence"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/planner"
	"github.com/omnihq/omni/internal/social"
	"github.com/omnihq/omni/internal/state"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	state       *state.Store
	insights    *intelligence.Engine
	automations *automation.Engine
	planner     *planner.Service
	publisher   *social.Manager
	connectors  *connectors.Manager
	notifier    *notifications.Service

	hub     *Hub
	log     *logging.Logger
	version string
}

// Config for the server. State is required; every other component is
// optional and its routes are simply not mounted when absent.
type Config struct {
	Port          int
	Version       string
	State         *state.Store
	Intelligence  *intelligence.Engine
	Automations   *automation.Engine
	Planner       *planner.Service
	Social        *social.Manager
	Connectors    *connectors.Manager
	Notifications *notifications.Service
}

// New creates a new API server
func New(cfg Config) *Server {
	s := &Server{
		state:       cfg.State,
		insights:    cfg.Intelligence,
		automations: cfg.Automations,
		planner:     cfg.Planner,
		publisher:   cfg.Social,
		connectors:  cfg.Connectors,
		notifier:    cfg.Notifications,
		hub:         NewHub(),
		log:         logging.Named("api"),
		version:     cfg.Version,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Hub returns the websocket hub so the daemon can subscribe it to the
// notification service and bridge it onto the state store.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler exposes the assembled router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/dashboard", s.handleDashboard)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
			r.Post("/{id}/complete", s.handleCompleteTask)
			r.Post("/{id}/toggle", s.handleToggleTask)
		})

		// Messages
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.handleListMessages)
			r.Post("/", s.handleSendMessage)
			r.Post("/{id}/read", s.handleMarkMessageRead)
			r.Post("/{id}/unread", s.handleMarkMessageUnread)
		})

		// Chat
		r.Post("/chat", s.handleChat)
		r.Get("/chat/history", s.handleChatHistory)

		// Context, insights, analytics, metrics
		r.Get("/context", s.handleGetContext)
		r.Put("/context", s.handleUpdateContext)
		r.Get("/insights", s.handleInsights)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/metrics", s.handleGetMetrics)
		r.Get("/metrics/{category}", s.handleGetMetricCategory)
		r.Put("/metrics/{category}", s.handleUpdateMetric)

		// Social posts
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Post("/", s.handleCreatePost)
		})
		r.Post("/social/publish", s.handlePublish)
		r.Get("/social/platforms", s.handleListPlatforms)

		// Calendar events
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Delete("/{id}", s.handleDeleteEvent)
		})

		// Automations (if engine is configured)
		if s.automations != nil {
			r.Route("/automations", func(r chi.Router) {
				r.Get("/", s.handleListAutomations)
				r.Post("/", s.handleCreateAutomation)
				r.Get("/templates", s.handleAutomationTemplates)
				r.Get("/suggestions", s.handleAutomationSuggestions)
				r.Post("/{id}/toggle", s.handleToggleAutomation)
				r.Post("/{id}/run", s.handleRunAutomation)
				r.Delete("/{id}", s.handleDeleteAutomation)
			})
		}

		// Service connections (if manager is configured)
		if s.connectors != nil {
			r.Get("/services", s.handleListServices)
			r.Post("/services/connect", s.handleConnectService)
			r.Post("/services/disconnect", s.handleDisconnectService)
			r.Post("/services/sync", s.handleSyncServices)
		}

		// Planners (if service is configured)
		if s.planner != nil {
			r.Route("/plans", func(r chi.Router) {
				r.Get("/trip", s.handleListTripPlans)
				r.Post("/trip", s.handlePlanTrip)
				r.Get("/finance", s.handleListFinanceProfiles)
				r.Post("/finance", s.handlePlanFinance)
				r.Post("/meals", s.handlePlanMeals)
				r.Post("/exercise", s.handlePlanExercise)
			})
		}

		// Notifications (if service is configured)
		if s.notifier != nil {
			notifAPI := NewNotificationsAPI(s.notifier)
			notifAPI.RegisterRoutes(r)
		}
	})

	// WebSocket
	r.Get("/ws", s.handleWebSocket)

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("listening on http://localhost%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// fail maps a domain error onto its HTTP status.
func (s *Server) fail(w http.ResponseWriter, err error) {
	s.respondError(w, httpStatus(err), err.Error())
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrRecordNotFound),
		errors.Is(err, core.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrMissingRequired),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrPlatformUnknown),
		errors.Is(err, core.ErrMediaRequired):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrServiceNotConnected),
		errors.Is(err, automation.ErrDisabled),
		errors.Is(err, automation.ErrConditionsNotMet):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC(),
	})
}

// --- Dashboard ---

// Dashboard is the aggregated snapshot the UI paints from on load and on
// every periodic refresh.
type Dashboard struct {
	Tasks          []core.Task          `json:"tasks"`
	UnreadMessages int                  `json:"unread_messages"`
	Posts          []core.SocialPost    `json:"posts"`
	Events         []core.CalendarEvent `json:"events"`
	Metrics        core.LifeMetrics     `json:"life_metrics"`
	OverallScore   float64              `json:"overall_score"`
	Context        core.UserContext     `json:"context"`
	Platforms      []string             `json:"connected_platforms"`
	Automations    []core.Automation    `json:"automations"`
	Insights       []core.Insight       `json:"insights,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.buildDashboard()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, dash)
}

// buildDashboard assembles the snapshot. The first read carries the store
// readiness error; the remaining reads can only fail the same way, so
// their errors are dropped.
func (s *Server) buildDashboard() (Dashboard, error) {
	tasks, err := s.state.Tasks()
	if err != nil {
		return Dashboard{}, err
	}
	unread, _ := s.state.UnreadCount()
	posts, _ := s.state.Posts()
	events, _ := s.state.Events()
	metrics, _ := s.state.Metrics()
	overall, _ := s.state.OverallScore()
	uc, _ := s.state.UserContext()
	platforms, _ := s.state.ConnectedPlatforms()
	autos, _ := s.state.Automations()

	dash := Dashboard{
		Tasks:          tasks,
		UnreadMessages: unread,
		Posts:          posts,
		Events:         events,
		Metrics:        metrics,
		OverallScore:   overall,
		Context:        uc,
		Platforms:      platforms,
		Automations:    autos,
		GeneratedAt:    time.Now().UTC(),
	}

	if s.insights != nil {
		if ins, err := s.insights.Insights(); err == nil {
			dash.Insights = ins
		}
	}

	return dash, nil
}

// BroadcastDashboard pushes a fresh snapshot to every websocket client.
// The daemon drives this from a periodic scheduler task; with no clients
// connected it does nothing.
func (s *Server) BroadcastDashboard() {
	if s.hub.ClientCount() == 0 {
		return
	}
	dash, err := s.buildDashboard()
	if err != nil {
		return
	}
	s.hub.Broadcast(Event{Type: "dashboard", Data: dash, Timestamp: time.Now().UTC()})
}
