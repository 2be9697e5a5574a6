// Omni CLI - the command-line client for the Omni daemon.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "0.1.0"

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "om",
		Short: "Omni - your personal productivity dashboard",
		Long: `Omni brings your tasks, messages, social posts, life metrics,
and planners together in one place, backed by a local-first daemon.

Start the daemon with 'omni', then use this CLI against it.`,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("OMNI_SERVER", "http://localhost:8090"), "daemon address")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(disconnectCmd())
	rootCmd.AddCommand(servicesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- HTTP plumbing ---

var httpClient = &http.Client{Timeout: 30 * time.Second}

func call(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s (is 'omni' running?): %w", serverURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("daemon error %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// --- Commands ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and a dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			var health struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			if err := call("GET", "/health", nil, &health); err != nil {
				return err
			}
			fmt.Printf("✅ Daemon %s (%s) at %s\n", health.Status, health.Version, serverURL)

			var dash struct {
				Tasks          []json.RawMessage `json:"tasks"`
				UnreadMessages int               `json:"unread_messages"`
				Posts          []json.RawMessage `json:"posts"`
				OverallScore   float64           `json:"overall_score"`
				Platforms      []string          `json:"connected_platforms"`
				Automations    []json.RawMessage `json:"automations"`
			}
			if err := call("GET", "/dashboard", nil, &dash); err != nil {
				return err
			}
			fmt.Printf("   Tasks: %d   Unread: %d   Posts: %d   Automations: %d\n",
				len(dash.Tasks), dash.UnreadMessages, len(dash.Posts), len(dash.Automations))
			fmt.Printf("   Life score: %.0f%%\n", dash.OverallScore*100)
			if len(dash.Platforms) > 0 {
				fmt.Printf("   Connected: %s\n", strings.Join(dash.Platforms, ", "))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("om %s\n", version)
		},
	}
}

type taskView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Priority  string     `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Service   string     `json:"service"`
	Completed bool       `json:"completed"`
	Sync      string     `json:"sync_status"`
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	var priority, description, due string
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"title":       strings.Join(args, " "),
				"description": description,
				"priority":    priority,
				"service":     "cli",
			}
			if due != "" {
				when, err := time.Parse("2006-01-02", due)
				if err != nil {
					return fmt.Errorf("invalid --due date (want YYYY-MM-DD): %w", err)
				}
				body["due_date"] = when
			}
			var task taskView
			if err := call("POST", "/tasks", body, &task); err != nil {
				return err
			}
			fmt.Printf("✅ Added [%s] %s (%s)\n", shortID(task.ID), task.Title, task.Priority)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low|medium|high|urgent")
	addCmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	addCmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.AddCommand(addCmd)

	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/tasks"
			if status != "" {
				path += "?status=" + status
			}
			var resp struct {
				Tasks []taskView `json:"tasks"`
			}
			if err := call("GET", path, nil, &resp); err != nil {
				return err
			}
			if len(resp.Tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}
			for _, t := range resp.Tasks {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				line := fmt.Sprintf("[%s] %s  %s (%s)", mark, shortID(t.ID), t.Title, t.Priority)
				if t.DueDate != nil {
					line += " due " + t.DueDate.Format("2006-01-02")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "pending|completed")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(args[0])
			if err != nil {
				return err
			}
			var task taskView
			if err := call("POST", "/tasks/"+id+"/complete", map[string]string{}, &task); err != nil {
				return err
			}
			fmt.Printf("🎉 Completed: %s\n", task.Title)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(args[0])
			if err != nil {
				return err
			}
			if err := call("DELETE", "/tasks/"+id, nil, nil); err != nil {
				return err
			}
			fmt.Println("🗑  Deleted.")
			return nil
		},
	})

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveTaskID accepts a full id or the 8-char prefix printed by list.
func resolveTaskID(arg string) (string, error) {
	if len(arg) > 8 {
		return arg, nil
	}
	var resp struct {
		Tasks []taskView `json:"tasks"`
	}
	if err := call("GET", "/tasks", nil, &resp); err != nil {
		return "", err
	}
	for _, t := range resp.Tasks {
		if strings.HasPrefix(t.ID, arg) {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("no task matches %q", arg)
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant (interactive without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return chatOnce(strings.Join(args, " "))
			}

			fmt.Println("💬 Omni chat - empty line to quit")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					return nil
				}
				if err := chatOnce(line); err != nil {
					return err
				}
			}
		},
	}
}

func chatOnce(message string) error {
	var reply struct {
		Response    string   `json:"response"`
		Intent      string   `json:"intent"`
		Suggestions []string `json:"suggestions"`
	}
	if err := call("POST", "/chat", map[string]string{"message": message}, &reply); err != nil {
		return err
	}
	fmt.Println(reply.Response)
	if len(reply.Suggestions) > 0 {
		fmt.Printf("   (try: %s)\n", strings.Join(reply.Suggestions, " · "))
	}
	return nil
}

func connectCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "connect <service>",
		Short: "Connect a service (todoist, slack, google_tasks, gmail)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]

			fmt.Printf("🔑 API token for %s: ", service)
			token, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			if len(token) == 0 {
				return fmt.Errorf("token required")
			}

			body := map[string]interface{}{
				"service": service,
				"token":   string(token),
			}
			if channel != "" {
				body["extra"] = map[string]string{"channel": channel}
			}
			if err := call("POST", "/services/connect", body, nil); err != nil {
				return err
			}
			fmt.Printf("✅ Connected to %s\n", service)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel to read (slack)")
	return cmd
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <service>",
		Short: "Disconnect a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := call("POST", "/services/disconnect", map[string]string{"service": args[0]}, nil); err != nil {
				return err
			}
			fmt.Printf("✅ Disconnected from %s\n", args[0])
			return nil
		},
	}
}

func servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List services and their connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Services []struct {
					Name      string `json:"name"`
					Connected bool   `json:"connected"`
				} `json:"services"`
			}
			if err := call("GET", "/services", nil, &resp); err != nil {
				return err
			}
			for _, svc := range resp.Services {
				state := "—"
				if svc.Connected {
					state = "connected"
				}
				fmt.Printf("  %-14s %s\n", svc.Name, state)
			}
			return nil
		},
	}
}
