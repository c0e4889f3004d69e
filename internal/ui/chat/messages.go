// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// TEA MESSAGES
// =============================================================================

// RefreshMsg wakes the event loop after the session read model changed.
// The orchestrator's Notify hook sends it from outside the program.
type RefreshMsg struct{}

// statusExpiredMsg clears a transient status line. The sequence number
// keeps an old timer from wiping a newer status.
type statusExpiredMsg struct {
	seq int
}

// exportDoneMsg reports the outcome of an async transcript export.
type exportDoneMsg struct {
	path string
	err  error
}

// historySyncedMsg reports the startup merge of backend history.
type historySyncedMsg struct {
	added int
	err   error
}

// sessionAdoptedMsg carries a backend-assigned id for a locally
// created session.
type sessionAdoptedMsg struct {
	localID   string
	backendID string
	err       error
}
