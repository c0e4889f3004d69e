// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the deepchat TUI.
//
// The package exposes an adaptive color palette and a Theme type that
// bundles every Lip Gloss style the chat view uses. All colors are
// lipgloss.AdaptiveColor pairs so the same palette works on light and
// dark terminals; NewTheme resolves which side applies, either from an
// explicit "dark"/"light" preference or by querying the terminal.
package styles
