// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/util"
)

const (
	sessionsFile = "sessions.json"

	// currentFile holds the bare current-session id outside the main
	// serialized blob, read on startup to decide whether to resume.
	currentFile = "current-session"

	// persistDebounce is how long streamed-delta writes coalesce before
	// hitting disk. Stream end flushes immediately.
	persistDebounce = 250 * time.Millisecond
)

// =============================================================================
// LOAD / PERSIST
// =============================================================================

// load reads persisted sessions and the current-session pointer from the
// store directory. A missing directory or files mean a fresh start, not an
// error. Corrupt session data is an error so the caller can surface it
// instead of silently discarding history.
func (s *Store) load() error {
	if s.dir == "" {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, sessionsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read sessions: %w", err)
	}

	var sessions []*model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("failed to parse sessions: %w", err)
	}
	for _, sess := range sessions {
		repairSession(sess)
	}
	s.sessions = sessions

	raw, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if s.findLocked(id) != nil {
			s.currentID = id
		}
	}
	return nil
}

// persist writes sessions and the current-session pointer. Callers hold
// mu. Persistence failures are logged, not returned; an in-memory
// mutation that already happened cannot be unwound.
func (s *Store) persist() {
	if s.persistTimer != nil {
		s.persistTimer.Stop()
		s.persistTimer = nil
	}

	if s.dir == "" {
		return
	}

	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		s.logger.Printf("store: marshal sessions: %v", err)
		return
	}

	if err := util.AtomicWriteFile(filepath.Join(s.dir, sessionsFile), data, 0644); err != nil {
		s.logger.Printf("store: write sessions: %v", err)
	}

	if err := util.AtomicWriteFile(filepath.Join(s.dir, currentFile), []byte(s.currentID), 0644); err != nil {
		s.logger.Printf("store: write current session: %v", err)
	}
}

// persistSoonLocked schedules a persist once the debounce window elapses.
// Any immediate persist that runs first serializes the whole state and
// drops the pending timer, so nothing scheduled is ever lost. Callers
// hold mu.
func (s *Store) persistSoonLocked() {
	if s.dir == "" || s.persistTimer != nil {
		return
	}
	s.persistTimer = time.AfterFunc(persistDebounce, func() {
		s.mu.Lock()
		s.persistTimer = nil
		s.persist()
		s.mu.Unlock()
	})
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Export serializes every session to indented JSON, timestamps in ISO
// 8601. The output round-trips through Import.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.sessions, "", "  ")
}

// Import replaces the session list with the parsed input. The input is
// fully parsed and repaired before anything is swapped in, so a malformed
// payload leaves existing state untouched. Sessions missing timestamps or
// model fields are repaired with defaults rather than rejected.
func (s *Store) Import(data []byte) error {
	var sessions []*model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("failed to parse imported sessions: %w", err)
	}
	for _, sess := range sessions {
		if sess.ID == "" {
			return fmt.Errorf("imported session missing id")
		}
		repairSession(sess)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = sessions
	if s.findLocked(s.currentID) == nil {
		s.currentID = ""
	}
	s.persist()
	return nil
}

// repairSession fills in fields older exports may lack.
func repairSession(sess *model.Session) {
	if sess.Title == "" {
		sess.Title = model.DefaultTitle
	}
	if sess.LastUpdated.IsZero() {
		sess.LastUpdated = time.Now()
	}
	if sess.Model != "" && !sess.Model.Valid() {
		sess.Model = model.ModelQwen
	}
	if sess.Messages == nil {
		sess.Messages = []model.Message{}
	}
}
