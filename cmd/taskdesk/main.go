// ABOUTME: Entry point for the taskdesk dispatch server
// ABOUTME: Manages agent records, work requests, and dispatch execution

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/taskdesk/internal/config"
	"github.com/2389/taskdesk/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _            _       _           _
| |_ __ _ ___| | ____| | ___  ___| | __
| __/ _' / __| |/ / _' |/ _ \/ __| |/ /
| || (_| \__ \   < (_| |  __/\__ \   <
 \__\__,_|___/_|\_\__,_|\___||___/_|\_\
`

// getConfigPath returns the path to the taskdesk config file.
// Priority: TASKDESK_CONFIG env var > XDG_CONFIG_HOME/taskdesk/taskdesk.yaml > ~/.config/taskdesk/taskdesk.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TASKDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "taskdesk.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "taskdesk", "taskdesk.yaml")
}

// getDataPath returns the path to the taskdesk data directory.
// Priority: XDG_DATA_HOME/taskdesk > ~/.local/share/taskdesk
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "taskdesk")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: taskdesk <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                      Start the dispatch server")
		fmt.Println("  init                       Create a default config file")
		fmt.Println("  health                     Check server health")
		fmt.Println("  agents                     List registered agents")
		fmt.Println("  dispatch <request-id>      Dispatch a request to an agent")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents(ctx)
	case "dispatch":
		err = runDispatch(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.Executor.Model)

	fmt.Println()

	logger.Info("starting taskdesk",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.Executor.Model,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// runInit writes a default config file. It refuses to overwrite an
// existing one.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "taskdesk.db")

	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# taskdesk configuration
# Generated by taskdesk init

server:
  http_addr: "0.0.0.0:8080"

database:
  path: "%s"

executor:
  provider: "openai"
  model: "gpt-4o-mini"
  api_key: "${OPENAI_API_KEY}"

dispatch:
  default_timeout: "60s"
  reserve_retries: 2

logging:
  level: "info"
  format: "text"
`, dbPath)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Set OPENAI_API_KEY, then run: taskdesk serve")
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/agents", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("listing agents failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing agents failed: status %d", resp.StatusCode)
	}

	var agents []server.AgentResponse
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(agents) == 0 {
		fmt.Println("No agents registered")
		return nil
	}

	for _, a := range agents {
		line := fmt.Sprintf("%-36s  %-12s  %-10s", a.ID, a.Name, a.Status)
		switch a.Status {
		case "idle":
			color.Green(line)
		case "processing":
			color.Yellow("%s  %s", line, a.CurrentTask)
		default:
			color.New(color.FgHiBlack).Println(line)
		}
	}
	return nil
}

// runDispatch sends one dispatch call and prints the outcome.
// Supports: taskdesk dispatch <request-id> [--agent ID] [--timeout SECONDS]
func runDispatch(ctx context.Context) error {
	args := os.Args[2:]
	var requestID, agentID string
	var timeoutSeconds int

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--agent" || arg == "-a":
			if i+1 >= len(args) {
				return fmt.Errorf("--agent requires a value")
			}
			agentID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--agent="):
			agentID = strings.TrimPrefix(arg, "--agent=")
		case arg == "--timeout" || arg == "-t":
			if i+1 >= len(args) {
				return fmt.Errorf("--timeout requires a value")
			}
			seconds, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --timeout value: %s", args[i+1])
			}
			timeoutSeconds = seconds
			i++
		case strings.HasPrefix(arg, "--timeout="):
			seconds, err := strconv.Atoi(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return fmt.Errorf("invalid --timeout value: %s", arg)
			}
			timeoutSeconds = seconds
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			if requestID != "" {
				return fmt.Errorf("unexpected argument: %s", arg)
			}
			requestID = arg
		}
	}

	if requestID == "" {
		return fmt.Errorf("request id is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	body, err := json.Marshal(server.DispatchRequest{
		RequestID:      requestID,
		AgentID:        agentID,
		TimeoutSeconds: timeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/dispatch", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var out server.DispatchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !out.Success {
		if out.Details != "" {
			return fmt.Errorf("%s: %s", out.Error, out.Details)
		}
		return fmt.Errorf("%s", out.Error)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Completed by %s (%s)\n\n", out.AgentName, out.AgentID)
	fmt.Println(out.Result)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
