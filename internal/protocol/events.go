// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol decodes the deepchat streaming wire format into typed events.
package protocol

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind identifies the kind of a decoded stream event.
type EventKind int

const (
	// EventAnswer carries an incremental fragment of the answer text.
	EventAnswer EventKind = iota
	// EventThink carries an incremental fragment of the reasoning trace.
	EventThink
	// EventWebSearch carries the structured web-search payload, delivered
	// at most once per stream.
	EventWebSearch
	// EventDone is the explicit completion sentinel ("[DONE]").
	EventDone
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventAnswer:
		return "answer"
	case EventThink:
		return "think"
	case EventWebSearch:
		return "web_search"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one decoded protocol event. The union is closed: Delta is set for
// EventAnswer and EventThink, Search is set for EventWebSearch, and EventDone
// carries nothing.
type Event struct {
	Kind   EventKind
	Delta  string
	Search *WebSearchResult
}

// =============================================================================
// WEB SEARCH PAYLOAD
// =============================================================================

// WebPage is a single retrieved page inside a web-search payload.
type WebPage struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// WebSearchResult is the structured search payload attached to at most one
// assistant turn. Field names follow the wire format.
type WebSearchResult struct {
	Query       string    `json:"query"`
	Pages       []WebPage `json:"pages"`
	PagesCount  int       `json:"pages_count"`
	Suggestions []string  `json:"suggestions"`
}
