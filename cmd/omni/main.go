// Omni Daemon - the personal productivity dashboard backend
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omnihq/omni/internal/agent"
	"github.com/omnihq/omni/internal/api"
	"github.com/omnihq/omni/internal/automation"
	"github.com/omnihq/omni/internal/config"
	"github.com/omnihq/omni/internal/connectors"
	"github.com/omnihq/omni/internal/embeddings"
	"github.com/omnihq/omni/internal/gateway"
	"github.com/omnihq/omni/internal/identity"
	"github.com/omnihq/omni/internal/intelligence"
	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/outbox"
	"github.com/omnihq/omni/internal/planner"
	"github.com/omnihq/omni/internal/reminders"
	"github.com/omnihq/omni/internal/scheduler"
	"github.com/omnihq/omni/internal/snapshot"
	"github.com/omnihq/omni/internal/social"
	"github.com/omnihq/omni/internal/state"
	"github.com/omnihq/omni/internal/storage"
	"github.com/omnihq/omni/internal/vectors"
)

var version = "0.1.0"

var (
	configPath string
	dataDir    string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "omni",
		Short: "Omni Daemon - your personal productivity dashboard",
		RunE:  runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.omni/config.json)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.omni)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default 8090)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("omni %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("🚀 Starting Omni Daemon...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.Features.DebugMode {
		logging.SetLevel(logging.DEBUG)
	}

	// Device identity (owner id for every persisted record)
	idmgr := identity.NewManager(cfg.DataDir)
	if _, err := idmgr.LoadOrCreate(""); err != nil {
		return fmt.Errorf("failed to load device identity: %w", err)
	}
	fmt.Printf("👤 Owner: %s\n", idmgr.OwnerID())

	// Open database
	db, err := storage.Open(storage.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := storage.NewDocumentStore(db)
	creds := storage.NewCredentialStore(db, idmgr)

	// Outbox: every local mutation drains into the document store.
	queue := outbox.New(db, outbox.NewDocumentRemote(docs, idmgr.OwnerID()), outbox.DefaultConfig())
	queue.SetSigner(idmgr)

	// Snapshot, coalesced so a mutation burst writes once.
	snaps := snapshot.NewCoalescer(snapshot.NewFileStore(cfg.SnapshotPath()), 2*time.Second)

	// Remote intelligence gateway + local assistant
	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
	})
	assistant := agent.NewAssistant(gw)
	if gw.IsConfigured() {
		fmt.Println("✅ Intelligence gateway configured")
	} else {
		fmt.Println("⚠️  No gateway URL set - chat answers locally")
	}

	// State container
	st := state.NewStore(state.Config{
		OwnerID:        idmgr.OwnerID(),
		Queue:          queue,
		Snapshots:      snaps,
		Assistant:      assistant,
		DefaultMetrics: intelligence.DefaultMetrics,
	})
	queue.SetStatusSink(st)

	if err := st.Initialize(ctx); err != nil {
		return fmt.Errorf("state initialization failed: %w", err)
	}
	if uc, err := st.UserContext(); err == nil && uc.CurrentTime.IsZero() {
		st.SetUserContext(intelligence.BuildContext(time.Now()))
	}

	// Notifications + reminders
	notifier := notifications.NewService(db)
	rems := reminders.NewService(db, notifier)
	unwatchReminders := rems.Watch(st)
	defer unwatchReminders()

	// Scheduler
	sched := scheduler.New()

	// Automations
	var autoEngine *automation.Engine
	if cfg.Features.EnableAutomations {
		autoEngine = automation.NewEngine(db, st, sched, notifier)
		if n, err := autoEngine.Restore(ctx); err != nil {
			logging.Warn("automation restore: %v", err)
		} else if n > 0 {
			fmt.Printf("🔁 Restored %d automations\n", n)
		}
		unwatchAuto := autoEngine.Watch()
		defer unwatchAuto()
	}

	// Service connectors
	conn := connectors.NewManager(creds)
	conn.RegisterDefaults(connectors.GoogleOAuth{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
	})
	conn.BindPlatforms(st)
	if n := conn.Restore(ctx); n > 0 {
		fmt.Printf("🔌 Reconnected %d services\n", n)
	}

	// Social publishing
	socialClient := social.NewClient(social.ClientConfig{
		BaseURL: cfg.Social.PublishURL,
		Timeout: time.Duration(cfg.Social.TimeoutSeconds) * time.Second,
	})
	publisher := social.NewManager(st, socialClient)
	queue.SetPublisher(publisher)

	// Insights + planners
	insights := intelligence.NewEngine(st)
	plans := planner.NewService(docs, queue, idmgr.OwnerID())

	// Semantic recall (optional)
	wireRecall(ctx, cfg, st, assistant)

	// HTTP API
	server := api.New(api.Config{
		Port:          cfg.Server.Port,
		Version:       version,
		State:         st,
		Intelligence:  insights,
		Automations:   autoEngine,
		Planner:       plans,
		Social:        publisher,
		Connectors:    conn,
		Notifications: notifier,
	})
	hub := server.Hub()
	unwatchHub := hub.Watch(st)
	defer unwatchHub()
	notifier.Subscribe(hub)

	// Background jobs
	sched.Register(scheduler.IntervalJob("reminders:sweep", "Reminder sweep", 30*time.Second, func(ctx context.Context) error {
		_, err := rems.SweepDue(ctx)
		return err
	}))
	sched.Register(scheduler.IntervalJob("dashboard:broadcast", "Dashboard broadcast", 30*time.Second, func(ctx context.Context) error {
		server.BroadcastDashboard()
		return nil
	}))
	sched.Register(scheduler.IntervalJob("context:refresh", "Context refresh", time.Hour, func(ctx context.Context) error {
		return st.SetUserContext(intelligence.BuildContext(time.Now()))
	}))
	sched.Register(scheduler.IntervalJob("connectors:sync", "Service sync", 5*time.Minute, func(ctx context.Context) error {
		_, err := conn.Sync(ctx, st)
		return err
	}))
	sched.Register(scheduler.DailyJob("notifications:cleanup", "Notification cleanup", "03:30", func(ctx context.Context) error {
		_, err := notifier.Cleanup(ctx, 30*24*time.Hour)
		return err
	}))
	sched.Register(scheduler.DailyJob("snapshot:flush", "Snapshot flush", "03:00", func(ctx context.Context) error {
		return snaps.Flush()
	}))
	if autoEngine != nil {
		sched.Register(scheduler.IntervalJob("automation:conditions", "Condition sweep", 15*time.Minute, func(ctx context.Context) error {
			_, err := autoEngine.SweepConditions(ctx)
			return err
		}))
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.Features.EnableSync {
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start outbox: %w", err)
		}
		defer queue.Stop()
	} else {
		fmt.Println("⚠️  Sync disabled - mutations stay local")
	}

	snaps.Start(ctx)
	defer snaps.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	fmt.Printf("✅ Omni ready on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("\n👋 Shutting down (%s)...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logging.Warn("server shutdown: %v", err)
	}
	if err := snaps.Flush(); err != nil {
		logging.Warn("final snapshot: %v", err)
	}
	return nil
}

// wireRecall connects the optional semantic memory: Qdrant for the index,
// Ollama for embeddings. Either being absent just disables recall.
func wireRecall(ctx context.Context, cfg *config.Config, st *state.Store, assistant *agent.Assistant) {
	if !cfg.Features.EnableRecall {
		return
	}

	embedder := embeddings.NewClient(embeddings.Config{
		BaseURL: cfg.Ollama.URL,
		Model:   cfg.Ollama.Model,
	})
	if err := embedder.Health(ctx); err != nil {
		fmt.Printf("⚠️  Ollama not available - semantic recall disabled (%v)\n", err)
		return
	}

	index, err := vectors.NewStore(vectors.Config{Host: cfg.Qdrant.Host, Port: cfg.Qdrant.Port})
	if err != nil {
		fmt.Printf("⚠️  Qdrant not available - semantic recall disabled (%v)\n", err)
		return
	}
	if err := index.Ping(ctx); err != nil {
		fmt.Printf("⚠️  Qdrant not reachable - semantic recall disabled (%v)\n", err)
		index.Close()
		return
	}

	memory := vectors.NewMemory(embedder, index)
	if err := memory.Start(ctx); err != nil {
		fmt.Printf("⚠️  Recall collection setup failed - semantic recall disabled (%v)\n", err)
		index.Close()
		return
	}
	memory.Watch(st)
	assistant.SetRecaller(memory)
	fmt.Println("✅ Semantic recall enabled (Qdrant + Ollama)")
}
