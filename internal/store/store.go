// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/protocol"
)

// ErrStreamActive is returned when an operation is refused because another
// session is currently receiving generation output.
var ErrStreamActive = errors.New("another session is currently streaming")

// =============================================================================
// STORE
// =============================================================================

// Store is the sole owner of persisted conversation state. Every exported
// method is one transaction: it takes the lock, mutates, persists, and
// returns. Readers receive deep copies so no caller can mutate state behind
// the lock's back.
//
// The streaming cursor (streamingID) is the single cross-cutting exclusion
// mechanism: mutations that carry an explicit target session not matching
// the cursor are dropped, which stops a stale stream from a superseded
// request corrupting a newly selected session.
type Store struct {
	mu sync.Mutex

	// sessions holds every conversation, newest first.
	sessions []*model.Session

	// currentID is the selected session, empty when none.
	currentID string

	// streamingID is the streaming cursor, empty when no stream is active.
	streamingID string

	// persistTimer is the pending debounced write, nil when none is
	// scheduled. Streamed deltas coalesce into it instead of rewriting
	// the sessions file once per delta.
	persistTimer *time.Timer

	dir    string
	logger *log.Logger
}

// NewStore creates a store rooted at dir, loading any persisted sessions.
// A nil logger discards diagnostics.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Store{
		dir:    dir,
		logger: logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// CreateSession allocates a new empty session, makes it current, and
// returns its id. Settings are seeded from the supplied preferences.
func (s *Store) CreateSession(prefs Preferences) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := model.NewSession(prefs.Model, prefs.DeepThinking)
	s.sessions = append([]*model.Session{sess}, s.sessions...)
	s.currentID = sess.ID
	s.persist()
	return sess.ID
}

// EnsureSession returns the current session id, creating a new session
// first when none is selected. Message appends never create sessions
// implicitly; callers run EnsureSession then AddMessage.
func (s *Store) EnsureSession(prefs Preferences) string {
	s.mu.Lock()
	if s.currentID != "" && s.findLocked(s.currentID) != nil {
		id := s.currentID
		s.mu.Unlock()
		return id
	}
	s.mu.Unlock()
	return s.CreateSession(prefs)
}

// AdoptSessionID rebinds a locally created session to a backend-assigned
// id. No-op when the session is unknown.
func (s *Store) AdoptSessionID(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(oldID)
	if sess == nil {
		s.logger.Printf("store: adopt id: session %s not found", oldID)
		return
	}
	sess.ID = newID
	if s.currentID == oldID {
		s.currentID = newID
	}
	if s.streamingID == oldID {
		s.streamingID = newID
	}
	s.persist()
}

// DeleteSession removes a session. Deleting the current session clears the
// selection rather than leaving a dangling reference. Unknown ids are
// logged no-ops.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Printf("store: delete: session %s not found", id)
		return
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.currentID == id {
		s.currentID = ""
	}
	if s.streamingID == id {
		s.streamingID = ""
	}
	s.persist()
}

// SelectSession makes a session current. The switch is refused with
// ErrStreamActive while a different session is streaming; abandoning an
// in-flight generation by switching away is not allowed.
func (s *Store) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamingID != "" && s.streamingID != id {
		s.logger.Printf("store: select %s refused, session %s is streaming", id, s.streamingID)
		return ErrStreamActive
	}

	if s.findLocked(id) == nil {
		s.logger.Printf("store: select: session %s not found", id)
		return nil
	}

	s.currentID = id
	s.persist()
	return nil
}

// ClearSessions removes every session and resets selection and streaming
// state.
func (s *Store) ClearSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.currentID = ""
	s.streamingID = ""
	s.persist()
}

// =============================================================================
// MESSAGE MUTATION
// =============================================================================

// AddMessage appends a message to the target session, or to the current
// session when target is empty. An explicit target that does not match an
// active streaming cursor is dropped. A user message appended to a
// fresh-titled session derives the session title.
func (s *Store) AddMessage(msg model.Message, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if target != "" && s.streamingID != "" && target != s.streamingID {
		s.logger.Printf("store: add message to %s dropped, cursor on %s", target, s.streamingID)
		return
	}

	id := target
	if id == "" {
		id = s.currentID
	}

	sess := s.findLocked(id)
	if sess == nil {
		s.logger.Printf("store: add message: session %s not found", id)
		return
	}

	sess.Messages = append(sess.Messages, msg)
	sess.LastUpdated = time.Now()

	if msg.Role == model.RoleUser && (sess.Title == "" || sess.Title == model.DefaultTitle) {
		sess.Title = model.DeriveTitle(msg.Content)
	}

	s.persist()
}

// AssistantUpdate carries a partial update for an assistant message.
// Content always replaces; the optional fields update only when non-nil,
// so a delta that lacks them never clobbers captured data.
type AssistantUpdate struct {
	Content      string
	ThinkContent *string
	ThinkingTime *int
	WebSearch    *protocol.WebSearchResult
}

// UpdateAssistantMessage applies an update to the last message of the
// target (or current) session. The last message must have role assistant;
// anything else is a logged no-op.
func (s *Store) UpdateAssistantMessage(upd AssistantUpdate, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.resolveTargetLocked(target, "update assistant")
	if !ok {
		return
	}

	last := sess.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		s.logger.Printf("store: update assistant: last message of %s is not assistant", sess.ID)
		return
	}

	applyUpdate(last, upd)
	sess.LastUpdated = time.Now()
	s.persistAfterUpdateLocked()
}

// ReplaceLastAssistantMessage applies an update to the last assistant-role
// message wherever it sits in the session, scanning backward. Used by
// regenerate and continue, where the message being rewritten may not be
// the final one. No assistant message is a logged no-op.
func (s *Store) ReplaceLastAssistantMessage(upd AssistantUpdate, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.resolveTargetLocked(target, "replace assistant")
	if !ok {
		return
	}

	idx := sess.LastAssistantIndex()
	if idx < 0 {
		s.logger.Printf("store: replace assistant: no assistant message in %s", sess.ID)
		return
	}

	applyUpdate(&sess.Messages[idx], upd)
	sess.LastUpdated = time.Now()
	s.persistAfterUpdateLocked()
}

// persistAfterUpdateLocked persists an assistant update. While a stream is
// active the write is debounced; deltas arrive many times per second and
// each immediate persist costs a full serialize, fsync and rename. Outside
// a stream the write happens at once. Callers hold mu.
func (s *Store) persistAfterUpdateLocked() {
	if s.streamingID != "" {
		s.persistSoonLocked()
		return
	}
	s.persist()
}

// applyUpdate merges an AssistantUpdate into a message in place.
func applyUpdate(msg *model.Message, upd AssistantUpdate) {
	msg.Content = upd.Content
	if upd.ThinkContent != nil {
		msg.ThinkContent = *upd.ThinkContent
	}
	if upd.ThinkingTime != nil {
		msg.ThinkingTime = *upd.ThinkingTime
	}
	if upd.WebSearch != nil {
		msg.WebSearch = upd.WebSearch
	}
	msg.Timestamp = time.Now()
}

// resolveTargetLocked resolves an update's session, enforcing the
// streaming-cursor gate for explicit targets.
func (s *Store) resolveTargetLocked(target, op string) (*model.Session, bool) {
	if target != "" && s.streamingID != "" && target != s.streamingID {
		s.logger.Printf("store: %s on %s dropped, cursor on %s", op, target, s.streamingID)
		return nil, false
	}

	id := target
	if id == "" {
		id = s.currentID
	}

	sess := s.findLocked(id)
	if sess == nil {
		s.logger.Printf("store: %s: session %s not found", op, id)
		return nil, false
	}
	return sess, true
}

// =============================================================================
// SESSION METADATA
// =============================================================================

// UpdateSessionTitle renames a session. Whitespace-only titles fall back
// to the placeholder; an empty string is never stored.
func (s *Store) UpdateSessionTitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		s.logger.Printf("store: rename: session %s not found", id)
		return
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	sess.Title = title
	s.persist()
}

// SetSessionModel changes a session's model preference.
func (s *Store) SetSessionModel(id string, m model.ModelType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		s.logger.Printf("store: set model: session %s not found", id)
		return
	}
	sess.Model = m
	s.persist()
}

// SetDeepThinking changes a session's deep-thinking flag.
func (s *Store) SetDeepThinking(id string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		s.logger.Printf("store: set deep thinking: session %s not found", id)
		return
	}
	sess.DeepThinking = enabled
	s.persist()
}

// =============================================================================
// STREAMING CURSOR
// =============================================================================

// SetStreamingSession moves the streaming cursor. An empty id clears it;
// clearing marks the end of a stream, so any debounced write flushes.
func (s *Store) SetStreamingSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamingID = id
	if id == "" && s.persistTimer != nil {
		s.persist()
	}
}

// StreamingSession returns the session currently receiving generation
// output, or empty when no stream is active.
func (s *Store) StreamingSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingID
}

// =============================================================================
// READ ACCESS
// =============================================================================

// CurrentID returns the selected session id, empty when none.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// CurrentSession returns a deep copy of the selected session, or nil.
func (s *Store) CurrentSession() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(s.currentID)
	if sess == nil {
		return nil
	}
	return sess.Clone()
}

// Session returns a deep copy of the session with the given id, or nil.
func (s *Store) Session(id string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(id)
	if sess == nil {
		return nil
	}
	return sess.Clone()
}

// Sessions returns deep copies of every session, newest first.
func (s *Store) Sessions() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Messages returns a copy of the message list of the target (or current)
// session. Unknown sessions yield nil.
func (s *Store) Messages(target string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := target
	if id == "" {
		id = s.currentID
	}

	sess := s.findLocked(id)
	if sess == nil {
		return nil
	}

	out := make([]model.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// findLocked returns the live session with the given id. Callers hold mu.
func (s *Store) findLocked(id string) *model.Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}
