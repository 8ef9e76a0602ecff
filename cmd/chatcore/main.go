package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meszmate/chatcore/internal/app"
	"github.com/meszmate/chatcore/internal/config"
	"github.com/meszmate/chatcore/internal/logging"
	"github.com/meszmate/chatcore/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	paths, err := config.GetPaths()
	if err != nil {
		log.Fatalf("Failed to resolve paths: %v", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// Load configuration
	path := *configPath
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.LoadFile(path, paths.DataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	// Initialize application
	application, err := app.New(cfg, logging.Component("app"))
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(
		ui.NewModel(ctx, application),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
