// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/jeranaias/deepchat/internal/util"
)

// DefaultTitle is used for sessions whose title cannot be derived from a
// user message.
const DefaultTitle = "New conversation"

// titleMaxRunes caps derived session titles.
const titleMaxRunes = 20

// =============================================================================
// MODEL TYPE
// =============================================================================

// ModelType identifies the backend generation model for a session.
type ModelType string

const (
	ModelQwen     ModelType = "QWEN"
	ModelDeepSeek ModelType = "DEEPSEEK"
)

// Valid reports whether the model type is one of the known backends.
func (m ModelType) Valid() bool {
	return m == ModelQwen || m == ModelDeepSeek
}

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one conversation thread with metadata.
//
// The id may originate locally or be assigned by the backend on creation.
// Model and DeepThinking are a per-session snapshot of the global user
// preferences at creation time, independently mutable afterward.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"timestamp"`

	Model        ModelType `json:"model,omitempty"`
	DeepThinking bool      `json:"enable_deep_thinking,omitempty"`
}

// NewSession creates an empty session with a generated ID.
func NewSession(model ModelType, deepThinking bool) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Title:        DefaultTitle,
		Messages:     make([]Message, 0),
		LastUpdated:  time.Now(),
		Model:        model,
		DeepThinking: deepThinking,
	}
}

// =============================================================================
// MESSAGE ACCESS
// =============================================================================

// LastMessage returns a pointer to the most recent message, or nil if empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// LastAssistantIndex returns the index of the most recent assistant message,
// scanning backward, or -1 if none exists.
func (s *Session) LastAssistantIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

// LastUserIndex returns the index of the most recent user message, scanning
// backward, or -1 if none exists.
func (s *Session) LastUserIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if there are no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Clone creates a deep copy of the session. Message values copy by
// assignment; the web-search payload is shared since it is written once.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Messages = make([]Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	return &clone
}

// Preview returns a short preview derived from the first user message.
func (s *Session) Preview() string {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return msg.Preview(80)
		}
	}
	return ""
}

// =============================================================================
// TITLE DERIVATION
// =============================================================================

// DeriveTitle builds a session title from the first user message: symbols
// collapse to spaces, runs of whitespace collapse to one, and the result is
// truncated. Empty input falls back to DefaultTitle.
func DeriveTitle(content string) string {
	var b strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	title := strings.Join(strings.Fields(b.String()), " ")
	if title == "" {
		return DefaultTitle
	}
	return util.TruncateRunes(title, titleMaxRunes+3)
}
