// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"github.com/jeranaias/deepchat/internal/protocol"
)

// =============================================================================
// CHAT REQUEST
// =============================================================================

// RegenerateMode selects how a repeat generation treats the previous answer.
type RegenerateMode string

const (
	// RegenerateReplace discards the previous answer and regrows it.
	RegenerateReplace RegenerateMode = "regenerate"
	// RegenerateContinue keeps the previous answer and appends to it.
	RegenerateContinue RegenerateMode = "continue"
)

// HistoryMessage is one prior turn sent to the backend as context.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is a file uploaded alongside a prompt.
type Attachment struct {
	Filename string
	Data     []byte
}

// ChatRequest carries everything needed for one streamed generation.
type ChatRequest struct {
	SessionID    string
	Prompt       string
	History      []HistoryMessage
	DeepThinking bool
	WebSearch    bool

	// Optional repeat-generation mode; empty for a normal send.
	Regenerate RegenerateMode

	// When either list is non-empty the request is multipart-encoded.
	// The choice of encoding is never a caller-visible option otherwise.
	Files      []Attachment
	ImageFiles []Attachment
}

// hasAttachments reports whether the request must be multipart-encoded.
func (r ChatRequest) hasAttachments() bool {
	return len(r.Files) > 0 || len(r.ImageFiles) > 0
}

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

// StreamCallbacks receives decoded protocol events during a ChatStream call.
// Any field may be nil. Callbacks run synchronously on the reader loop and
// in receipt order; OnComplete fires exactly once per stream that ends
// without a transport error, including streams ended by cancellation.
//
// Transport failures are reported through ChatStream's error return, in
// which case OnComplete does not fire.
type StreamCallbacks struct {
	OnMessage   func(delta string)
	OnThinking  func(delta string)
	OnWebSearch func(result *protocol.WebSearchResult)
	OnComplete  func()
}

// dispatch routes one decoded event to the matching callback.
func (cb StreamCallbacks) dispatch(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventAnswer:
		if cb.OnMessage != nil {
			cb.OnMessage(ev.Delta)
		}
	case protocol.EventThink:
		if cb.OnThinking != nil {
			cb.OnThinking(ev.Delta)
		}
	case protocol.EventWebSearch:
		if cb.OnWebSearch != nil {
			cb.OnWebSearch(ev.Search)
		}
	}
}
