// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the terminal chat view.
//
// The view is a Bubble Tea model over three collaborators it never
// owns: the session store (conversation state), the preference store
// (model and toggle settings) and the stream orchestrator (in-flight
// responses). Every render re-reads their snapshots, so the view stays
// correct no matter which side mutated state.
//
// The orchestrator notifies the program through RefreshMsg. Terminal
// focus and blur events are forwarded to the orchestrator so streaming
// updates coalesce while the window is hidden.
package chat
