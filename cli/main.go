package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kardianos/service"
	"github.com/tokgraph/tokgraph/cli/internal/config"
	"github.com/tokgraph/tokgraph/cli/internal/output"
	syncclient "github.com/tokgraph/tokgraph/cli/internal/sync"
	"github.com/tokgraph/tokgraph/internal/accel"
	"github.com/tokgraph/tokgraph/internal/aggregator"
	"github.com/tokgraph/tokgraph/internal/model"
	"github.com/tokgraph/tokgraph/internal/parser"
	"github.com/tokgraph/tokgraph/internal/pricing"
)

const version = "0.3.0"

func main() {
	// Detect subcommand first
	command := "graph"
	args := os.Args[1:]

	var filteredArgs []string
	for i, arg := range args {
		switch arg {
		case "graph", "models", "monthly", "sync", "config":
			command = arg
			filteredArgs = append(args[:i], args[i+1:]...)
		}
		if command != "graph" || arg == "graph" {
			break
		}
	}
	if filteredArgs == nil {
		filteredArgs = args
	}

	switch command {
	case "sync":
		runSync(filteredArgs)
		return
	case "config":
		runConfig(filteredArgs)
		return
	}

	fs := flag.NewFlagSet("tokgraph", flag.ExitOnError)

	var (
		since    string
		until    string
		year     string
		sources  string
		workers  int
		accelTo  string
		jsonOut  bool
		showHelp bool
		showVer  bool
	)

	fs.StringVar(&since, "since", "", "Start date filter (YYYY-MM-DD)")
	fs.StringVar(&until, "until", "", "End date filter (YYYY-MM-DD)")
	fs.StringVar(&year, "year", "", "Restrict to one calendar year (YYYY)")
	fs.StringVar(&sources, "sources", "", "Comma-separated sources to scan (default all)")
	fs.IntVar(&workers, "workers", 0, "Parallel file parsing workers")
	fs.StringVar(&accelTo, "accel", "", "Delegate graph generation to a worker at host:port")
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showVer, "version", false, "Show version")
	fs.BoolVar(&showVer, "v", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tokgraph - AI coding assistant usage graphs

Usage: tokgraph [command] [options]

Commands:
  graph     Show the daily usage graph (default)
  models    Show usage per model
  monthly   Show usage per month
  sync      Sync usage data to server
  config    Configure sync settings

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  tokgraph                         Show daily graph across all sources
  tokgraph graph --year 2026 --json
  tokgraph models --since 2026-01-01
  tokgraph monthly --sources claude,codex
  tokgraph config --server https://example.com --api-key <key>
  tokgraph sync
`)
	}

	fs.Parse(filteredArgs)

	if showVer {
		fmt.Printf("tokgraph version %s\n", version)
		return
	}
	if showHelp {
		fs.Usage()
		return
	}

	for _, date := range []string{since, until} {
		if date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid date %q. Use YYYY-MM-DD.\n", date)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	msgs, err := loadMessages(ctx, splitSources(sources), workers, since, until, year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(msgs) == 0 {
		fmt.Println("No usage data found.")
		return
	}

	switch command {
	case "graph":
		engine := buildEngine(accelTo)
		export, err := engine.GenerateGraph(ctx, msgs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating graph: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			output.PrintJSON(export)
		} else {
			output.PrintGraph(export)
		}
	case "models":
		rows := aggregator.ModelReport(msgs)
		if jsonOut {
			output.PrintJSON(rows)
		} else {
			output.PrintModels(rows)
		}
	case "monthly":
		rows := aggregator.MonthlyReport(msgs)
		if jsonOut {
			output.PrintJSON(rows)
		} else {
			output.PrintMonthly(rows)
		}
	}
}

func splitSources(s string) []string {
	if s == "" {
		return nil
	}
	var sources []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			sources = append(sources, part)
		}
	}
	return sources
}

// loadMessages scans, parses, filters and prices usage data from every
// requested source.
func loadMessages(ctx context.Context, sources []string, workers int, since, until, year string) ([]model.UnifiedMessage, error) {
	roots, err := parser.DefaultRoots()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}

	msgs, err := parser.ParseAll(ctx, parser.Options{Roots: roots, Sources: sources, Workers: workers})
	if err != nil {
		return nil, err
	}
	msgs = parser.Filter(msgs, since, until, year)
	if len(msgs) == 0 {
		return nil, nil
	}

	catalog, err := pricing.NewLoader().Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	pricing.ApplyCosts(msgs, catalog)
	return msgs, nil
}

func buildEngine(accelAddr string) accel.Engine {
	if accelAddr == "" {
		return accel.InProcess{}
	}
	return &accel.Remote{
		Dial: func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", accelAddr)
		},
	}
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		server string
		apiKey string
		show   bool
	)
	fs.StringVar(&server, "server", "", "Server URL")
	fs.StringVar(&apiKey, "api-key", "", "API key for authentication")
	fs.BoolVar(&show, "show", false, "Show current configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: tokgraph config [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  tokgraph config --server https://example.com --api-key tg_xxx
  tokgraph config --show
`)
	}

	fs.Parse(args)

	if show {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Server == "" {
			fmt.Println("No configuration found. Run 'tokgraph config --server <url> --api-key <key>' to configure.")
			return
		}
		fmt.Printf("Server: %s\n", cfg.Server)
		if len(cfg.APIKey) > 14 {
			fmt.Printf("API Key: %s...%s\n", cfg.APIKey[:10], cfg.APIKey[len(cfg.APIKey)-4:])
		}
		if cfg.DeviceID != "" {
			fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		}
		return
	}

	if server == "" && apiKey == "" {
		fs.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}
	if server != "" {
		cfg.Server = server
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration saved.")
}

// syncService implements service.Interface for background syncing
type syncService struct {
	interval time.Duration
	stop     chan struct{}
	logger   service.Logger
}

func (s *syncService) Start(svc service.Service) error {
	s.stop = make(chan struct{})
	go s.run()
	return nil
}

func (s *syncService) Stop(svc service.Service) error {
	close(s.stop)
	return nil
}

func (s *syncService) run() {
	cfg, err := config.Load()
	if err != nil || cfg.Server == "" || cfg.APIKey == "" {
		if s.logger != nil {
			s.logger.Error("Not configured. Run 'tokgraph config' first.")
		}
		return
	}

	client := syncclient.NewClient(cfg)

	s.doSync(client, cfg.DeviceID)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.doSync(client, cfg.DeviceID)
		case <-s.stop:
			return
		}
	}
}

func (s *syncService) doSync(client *syncclient.Client, deviceID string) {
	ctx := context.Background()
	msgs, err := loadMessages(ctx, nil, 0, "", "", "")
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error reading usage data: %v", err)
		}
		return
	}
	if len(msgs) == 0 {
		return
	}

	days, err := client.Submit(aggregator.BuildSubmission(deviceID, msgs))
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error syncing: %v", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Infof("Synced %d days", days)
	}
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	var (
		dryRun   bool
		interval time.Duration
	)
	fs.BoolVar(&dryRun, "dry-run", false, "Show what would be synced without sending")
	fs.DurationVar(&interval, "interval", time.Hour, "Sync interval for service mode (e.g., 1h, 30m)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: tokgraph sync [command] [options]

Commands:
  (none)      Sync once
  install     Install as a background service
  start       Start the background service
  stop        Stop the background service
  uninstall   Remove the background service
  status      Show service status

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  tokgraph sync                    Sync once
  tokgraph sync install            Install service (syncs every hour)
  tokgraph sync install --interval 30m
  tokgraph sync start              Start the service
  tokgraph sync stop               Stop the service
`)
	}

	var svcCommand string
	if len(args) > 0 {
		switch args[0] {
		case "install", "start", "stop", "uninstall", "status":
			svcCommand = args[0]
			args = args[1:]
		}
	}

	fs.Parse(args)

	svcConfig := &service.Config{
		Name:        "tokgraph-sync",
		DisplayName: "tokgraph Sync Service",
		Description: "Automatically syncs AI assistant usage data to server",
		Arguments:   []string{"sync", "run", fmt.Sprintf("--interval=%s", interval)},
	}

	svc := &syncService{interval: interval}
	s, err := service.New(svc, svcConfig)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch svcCommand {
	case "install":
		cfg, err := config.Load()
		if err != nil || cfg.Server == "" || cfg.APIKey == "" {
			fmt.Fprintf(os.Stderr, "Error: Not configured. Run 'tokgraph config --server <url> --api-key <key>' first.\n")
			os.Exit(1)
		}
		if err := s.Install(); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		if err := s.Start(); err != nil {
			log.Fatalf("Service installed but failed to start: %v", err)
		}
		fmt.Printf("Service installed and started.\n")
		fmt.Printf("Sync interval: %s\n", interval)
		return

	case "start":
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("Service started.")
		return

	case "stop":
		if err := s.Stop(); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("Service stopped.")
		return

	case "uninstall":
		s.Stop() // ignore error
		if err := s.Uninstall(); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled.")
		return

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Printf("Service status: not installed or error (%v)\n", err)
		} else {
			switch status {
			case service.StatusRunning:
				fmt.Println("Service status: running")
			case service.StatusStopped:
				fmt.Println("Service status: stopped")
			default:
				fmt.Println("Service status: unknown")
			}
		}
		return

	case "": // No service command - do a one-time sync
		cfg, err := config.Load()
		if err != nil || cfg.Server == "" || cfg.APIKey == "" {
			fmt.Fprintf(os.Stderr, "Error: Not configured. Run 'tokgraph config --server <url> --api-key <key>' first.\n")
			os.Exit(1)
		}
		if cfg.DeviceID == "" {
			if err := config.Save(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error assigning device ID: %v\n", err)
				os.Exit(1)
			}
		}

		doSyncOnce(syncclient.NewClient(cfg), cfg.DeviceID, dryRun)
		return

	default:
		// Running as service (internal command)
		logger, err := s.Logger(nil)
		if err == nil {
			svc.logger = logger
		}
		if err := s.Run(); err != nil && logger != nil {
			logger.Error(err)
		}
	}
}

func doSyncOnce(client *syncclient.Client, deviceID string, dryRun bool) {
	ctx := context.Background()
	msgs, err := loadMessages(ctx, nil, 0, "", "", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading usage data: %v\n", err)
		os.Exit(1)
	}
	if len(msgs) == 0 {
		fmt.Println("No usage data to sync.")
		return
	}

	sub := aggregator.BuildSubmission(deviceID, msgs)
	fmt.Printf("Found %d messages across %d days.\n", len(msgs), len(sub.Days))

	if dryRun {
		fmt.Println("Dry run - no data sent.")
		return
	}

	days, err := client.Submit(sub)
	if err != nil {
		if errors.Is(err, syncclient.ErrBusy) {
			fmt.Fprintln(os.Stderr, "Another device is syncing right now. Try again in a moment.")
		} else {
			fmt.Fprintf(os.Stderr, "Error syncing: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Sync complete. %d days merged.\n", days)
}
