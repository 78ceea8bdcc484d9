package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/castellan/castellan/internal/agent"
	"github.com/castellan/castellan/internal/api"
	"github.com/castellan/castellan/internal/assistant"
	"github.com/castellan/castellan/internal/config"
	"github.com/castellan/castellan/internal/notify"
	"github.com/castellan/castellan/internal/platform"
	"github.com/castellan/castellan/internal/prefs"
	"github.com/castellan/castellan/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the castellan server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running castellan server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show castellan system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "castellan.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "castellan version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice: probe the health endpoint before claiming
	// the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("castellan is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("castellan is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the preference store.
	preferences, err := prefs.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening preference store: %w", err)
	}
	defer func() {
		if err := preferences.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing preference store: %v\n", err)
		}
	}()

	// Build the engine: session store, thread correlator, backend
	// client, fanout router, and the inbound orchestrator.
	sessions := session.NewStore()
	backend := agent.NewClient(cfg.Agent.Endpoint, cfg.Agent.AgentID)
	threads := agent.NewCorrelator(backend)
	sender := platform.NewClient(cfg.Platform.Token)
	router := notify.NewRouter(sessions, preferences, sender)
	asst := assistant.New(sessions, threads, backend)

	handler := api.NewHandler(api.Deps{
		Assistant:       asst,
		Router:          router,
		Sessions:        sessions,
		Prefs:           preferences,
		APIKey:          cfg.Server.APIKey,
		AgentConfigured: cfg.Agent.Endpoint != "" && cfg.Agent.AgentID != "",
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Evict stale sessions in the background.
	sweeper := session.NewSweeper(sessions, cfg.Session.MaxAge, cfg.Session.SweepInterval)
	go sweeper.Run(ctx)

	// MCP server over stdio for operator-side agents.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Router:   router,
		Sessions: sessions,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "castellan listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("castellan is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop castellan (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to castellan (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/api/health")
	if err != nil {
		printStatus("Server", "stopped")
		printStatus("Agent endpoint", "%s", cfg.Agent.Endpoint)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	}

	if resp.StatusCode == http.StatusOK {
		printStatus("Server", "healthy on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "degraded (HTTP %d)", resp.StatusCode)
	}

	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
		Stats  struct {
			TotalConversations  int `json:"totalConversations"`
			ActiveConversations int `json:"activeConversations"`
			TotalMessages       int `json:"totalMessages"`
		} `json:"conversationStats"`
	}
	if err := decodeJSON(resp, &health); err == nil {
		for name, state := range health.Checks {
			printStatus("Check "+name, "%s", state)
		}
		printStatus("Conversations", "%d tracked, %d active", health.Stats.TotalConversations, health.Stats.ActiveConversations)
		printStatus("Messages", "%d", health.Stats.TotalMessages)
	}

	printStatus("Agent endpoint", "%s", cfg.Agent.Endpoint)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
