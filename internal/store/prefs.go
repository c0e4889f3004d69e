// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/util"
)

const preferencesFile = "preferences.json"

// =============================================================================
// USER PREFERENCES
// =============================================================================

// Preferences holds the user's generation settings. New sessions snapshot
// these at creation time; existing sessions keep their own copies.
type Preferences struct {
	Model        model.ModelType `json:"model"`
	DeepThinking bool            `json:"enable_deep_thinking"`
	WebSearch    bool            `json:"web_search"`
}

// DefaultPreferences returns the out-of-the-box settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Model:        model.ModelQwen,
		DeepThinking: false,
		WebSearch:    false,
	}
}

// PrefStore persists user preferences independently of sessions, under
// its own storage file.
type PrefStore struct {
	mu     sync.Mutex
	prefs  Preferences
	dir    string
	logger *log.Logger
}

// NewPrefStore loads preferences from dir, falling back to defaults when
// the file is missing or unreadable. Corrupt preferences are not fatal;
// they reset to defaults with a log line.
func NewPrefStore(dir string, logger *log.Logger) *PrefStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	p := &PrefStore{
		prefs:  DefaultPreferences(),
		dir:    dir,
		logger: logger,
	}

	if dir == "" {
		return p
	}

	data, err := os.ReadFile(filepath.Join(dir, preferencesFile))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("prefs: read: %v", err)
		}
		return p
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		logger.Printf("prefs: parse: %v, using defaults", err)
		return p
	}
	if !prefs.Model.Valid() {
		prefs.Model = model.ModelQwen
	}
	p.prefs = prefs
	return p
}

// Get returns the current preferences.
func (p *PrefStore) Get() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

// SetModel updates the selected model. Invalid values are ignored.
func (p *PrefStore) SetModel(m model.ModelType) {
	if !m.Valid() {
		p.logger.Printf("prefs: invalid model %q ignored", m)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs.Model = m
	p.persist()
}

// SetDeepThinking updates the deep-thinking flag.
func (p *PrefStore) SetDeepThinking(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs.DeepThinking = enabled
	p.persist()
}

// SetWebSearch updates the web-search flag.
func (p *PrefStore) SetWebSearch(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs.WebSearch = enabled
	p.persist()
}

// persist writes preferences to disk. Callers hold mu.
func (p *PrefStore) persist() {
	if p.dir == "" {
		return
	}

	data, err := json.MarshalIndent(p.prefs, "", "  ")
	if err != nil {
		p.logger.Printf("prefs: marshal: %v", err)
		return
	}
	if err := util.AtomicWriteFile(filepath.Join(p.dir, preferencesFile), data, 0644); err != nil {
		p.logger.Printf("prefs: write: %v", err)
	}
}
