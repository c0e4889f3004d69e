// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns persisted conversation state for deepchat.
//
// Store is the single mutator of sessions and messages. Every exported
// method is one transaction under the store's lock, and readers receive
// deep copies. The streaming cursor gates cross-session mutation while a
// generation is in flight: updates that explicitly target a session other
// than the one streaming are dropped, and switching the current session
// away from an active stream is refused with ErrStreamActive.
//
// Lookup misses are silent, logged no-ops. UI events legitimately race
// in-flight streams (a delete racing a stream update, for example), so a
// missing id is an expected condition, never a panic or error.
//
// State lives as JSON files under the store directory: sessions.json for
// the conversation list, preferences.json for user settings, and a bare
// current-session file holding the resumed session id. All writes go
// through util.AtomicWriteFile.
package store
