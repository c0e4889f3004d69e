// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/deepchat/internal/protocol"
)

func TestNewMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.ID == "" {
		t.Error("expected generated ID")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %v, want user", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %v, want assistant", msg.Role)
	}
	if !msg.IsEmpty() {
		t.Error("placeholder should start empty")
	}
}

func TestMessageIDsUnique(t *testing.T) {
	a := NewUserMessage("a")
	b := NewUserMessage("b")
	if a.ID == b.ID {
		t.Errorf("IDs collide: %q", a.ID)
	}
}

func TestSession_LastAssistantIndex(t *testing.T) {
	s := NewSession(ModelQwen, false)
	if s.LastAssistantIndex() != -1 {
		t.Error("empty session should return -1")
	}

	s.Messages = append(s.Messages, NewUserMessage("q1"))
	s.Messages = append(s.Messages, NewMessage(RoleAssistant, "a1"))
	s.Messages = append(s.Messages, NewUserMessage("q2"))

	// Last assistant is not the last message.
	if idx := s.LastAssistantIndex(); idx != 1 {
		t.Errorf("LastAssistantIndex = %d, want 1", idx)
	}
	if idx := s.LastUserIndex(); idx != 2 {
		t.Errorf("LastUserIndex = %d, want 2", idx)
	}
}

func TestSession_Clone(t *testing.T) {
	s := NewSession(ModelDeepSeek, true)
	s.Messages = append(s.Messages, NewUserMessage("original"))

	clone := s.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Messages = append(clone.Messages, NewUserMessage("extra"))

	if s.Messages[0].Content != "original" {
		t.Error("clone mutation leaked into source message")
	}
	if len(s.Messages) != 1 {
		t.Error("clone append leaked into source slice")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello world", "Hello world"},
		{"symbols", "What's a *goroutine*?", "What s a goroutine"},
		{"whitespace", "  a \n\n b  ", "a b"},
		{"empty", "", DefaultTitle},
		{"only symbols", "???!!!", DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.in); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeriveTitle_Truncates(t *testing.T) {
	long := strings.Repeat("a", 40)
	got := DeriveTitle(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long title not truncated: %q", got)
	}
	if n := len([]rune(got)); n > 23 {
		t.Errorf("title length = %d runes, want <= 23", n)
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := NewSession(ModelQwen, true)
	msg := NewMessage(RoleAssistant, "answer")
	msg.ThinkContent = "thinking"
	msg.ThinkingTime = 3
	msg.WebSearch = &protocol.WebSearchResult{Query: "q", PagesCount: 2}
	s.Messages = append(s.Messages, msg)
	s.LastUpdated = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// Timestamps serialize as ISO 8601.
	if !strings.Contains(string(data), "2025-06-01T12:00:00Z") {
		t.Errorf("timestamp not ISO 8601: %s", data)
	}

	var back Session
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.ID != s.ID || back.Model != ModelQwen || !back.DeepThinking {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if back.Messages[0].ThinkContent != "thinking" || back.Messages[0].WebSearch == nil {
		t.Errorf("round trip lost message fields: %+v", back.Messages[0])
	}
}
