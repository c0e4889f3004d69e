// deepchat - a terminal client for a streaming chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deepchat/internal/api"
	"github.com/jeranaias/deepchat/internal/config"
	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/orchestrator"
	"github.com/jeranaias/deepchat/internal/store"
	"github.com/jeranaias/deepchat/internal/ui/chat"
	"github.com/jeranaias/deepchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for the orchestrator's notify hook. The
// orchestrator is built before the program exists, so access goes
// through a mutex.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func setProgram(p *tea.Program) {
	programMu.Lock()
	defer programMu.Unlock()
	programRef = p
}

func notifyProgram() {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(chat.RefreshMsg{})
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to a config file (TOML or JSON)")
		exportPath  = flag.String("export", "", "export all sessions to a JSON file and exit")
		importPath  = flag.String("import", "", "import sessions from a JSON file and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("deepchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := openLogger(cfg, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Session store
	st, err := store.NewStore(dataDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot load sessions: %v\n", err)
		os.Exit(1)
	}

	// Import/export are one-shot modes that bypass the TUI.
	if *exportPath != "" {
		if err := runExport(st, *exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sessions exported to %s\n", *exportPath)
		return
	}
	if *importPath != "" {
		if err := runImport(st, *importPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sessions imported from %s\n", *importPath)
		return
	}

	// User preferences, seeded from config on first run
	prefs := store.NewPrefStore(dataDir, logger)
	seedPreferences(prefs, cfg, dataDir)

	// Backend client
	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		UserID:  cfg.Backend.UserID,
		Timeout: time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
	})

	// Stream orchestrator, waking the UI through the program reference
	orch := orchestrator.New(st, prefs, client, orchestrator.Options{
		SearchHoldback: time.Duration(cfg.Chat.SearchHoldbackMs) * time.Millisecond,
		Notify:         notifyProgram,
		Logger:         logger,
	})

	// UI
	theme := styles.NewTheme(cfg.UI.Theme)
	m := chat.New(cfg, theme, st, prefs, orch, client)

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)
	setProgram(p)

	logger.Printf("starting deepchat %s against %s", Version, cfg.Backend.BaseURL)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLogger opens the diagnostic log file. Empty LogFile falls back to
// deepchat.log inside the data directory.
func openLogger(cfg *config.Config, dataDir string) (*log.Logger, func(), error) {
	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(dataDir, "deepchat.log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return log.New(f, "", log.LstdFlags), func() { f.Close() }, nil
}

// seedPreferences applies config defaults the first time the app runs.
// Once a preferences file exists, it wins over the config.
func seedPreferences(prefs *store.PrefStore, cfg *config.Config, dataDir string) {
	if _, err := os.Stat(filepath.Join(dataDir, "preferences.json")); err == nil {
		return
	}

	if m := model.ModelType(cfg.Chat.DefaultModel); m.Valid() {
		prefs.SetModel(m)
	}
	prefs.SetDeepThinking(cfg.Chat.DeepThinking)
	prefs.SetWebSearch(cfg.Chat.WebSearch)
}

// runExport writes every session to path as JSON.
func runExport(st *store.Store, path string) error {
	data, err := st.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// runImport replaces the session list with the contents of path.
func runImport(st *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return st.Import(data)
}
