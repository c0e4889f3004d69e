// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/deepchat/internal/protocol"
	"github.com/jeranaias/deepchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message. Exactly two roles are surfaced
// to the UI; the backend never streams system turns.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a session.
//
// Content grows monotonically while a stream is open; only the regenerate
// path resets it to empty before regrowing. ThinkContent, ThinkingTime and
// WebSearch are assistant-only and optional.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Deep-thinking trace, appended alongside the answer.
	ThinkContent string `json:"think_content,omitempty"`
	// Whole seconds spent thinking, finalized once at stream completion.
	ThinkingTime int `json:"thinking_time,omitempty"`
	// Structured web-search payload, attached at most once per turn.
	WebSearch *protocol.WebSearchResult `json:"web_search,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant placeholder, ready to be
// filled by a stream.
func NewAssistantMessage() Message {
	return NewMessage(RoleAssistant, "")
}

// Preview returns a truncated, single-line preview of the message content.
func (m Message) Preview(maxRunes int) string {
	return util.SingleLine(util.TruncateRunes(m.Content, maxRunes))
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return m.Content == ""
}
