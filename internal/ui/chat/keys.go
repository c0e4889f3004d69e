// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
// Plain keys belong to the textarea; everything here is a control chord
// so typing is never ambiguous.
type KeyMap struct {
	Submit        key.Binding
	Stop          key.Binding
	Quit          key.Binding
	NewSession    key.Binding
	DeleteSession key.Binding
	PrevSession   key.Binding
	NextSession   key.Binding
	ToggleSidebar key.Binding
	Regenerate    key.Binding
	Continue      key.Binding
	ToggleThink   key.Binding
	WebSearch     key.Binding
	DeepThinking  key.Binding
	CycleModel    key.Binding
	Export        key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop response"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		DeleteSession: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete chat"),
		),
		PrevSession: key.NewBinding(
			key.WithKeys("ctrl+up"),
			key.WithHelp("C-up", "previous chat"),
		),
		NextSession: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("C-down", "next chat"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "sidebar"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "regenerate"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "continue answer"),
		),
		ToggleThink: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "thinking panel"),
		),
		WebSearch: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("C-w", "web search"),
		),
		DeepThinking: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "deep thinking"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "switch model"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "export"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Stop, k.NewSession, k.Regenerate, k.ToggleSidebar, k.Quit}
}

// FullHelp returns all bindings grouped for a help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Conversation
		{k.Submit, k.Stop, k.Regenerate, k.Continue},
		// Sessions
		{k.NewSession, k.DeleteSession, k.PrevSession, k.NextSession, k.ToggleSidebar},
		// Modes
		{k.WebSearch, k.DeepThinking, k.CycleModel, k.ToggleThink},
		// Misc
		{k.Export, k.PageUp, k.PageDown, k.Quit},
	}
}
