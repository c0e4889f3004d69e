// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// SESSION SIDEBAR STYLES
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarGroup        lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemCurrent  lipgloss.Style
	SessionItemStreaming lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	ErrorText      lipgloss.Style

	// ==========================================================================
	// THINKING PANEL STYLES
	// ==========================================================================

	ThinkingHeader lipgloss.Style
	ThinkingBody   lipgloss.Style

	// ==========================================================================
	// WEB SEARCH PANEL STYLES
	// ==========================================================================

	SearchHeader     lipgloss.Style
	SearchTitle      lipgloss.Style
	SearchURL        lipgloss.Style
	SearchSuggestion lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ToggleOn     lipgloss.Style
	ToggleOff    lipgloss.Style
	StatusNotice lipgloss.Style

	// Spinner shown while a response is in flight
	Spinner lipgloss.Style
}

// NewTheme creates a theme for the given mode: "dark", "light" or "auto".
// Auto asks the terminal for its background color.
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	// Adaptive colors resolve against this flag.
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Session sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.SidebarGroup = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextMuted)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SessionItemCurrent = lipgloss.NewStyle().
		Background(SelectionBg).
		Foreground(TextPrimary).
		Bold(true)

	t.SessionItemStreaming = lipgloss.NewStyle().
		Foreground(Amber)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	// Thinking panel
	t.ThinkingHeader = lipgloss.NewStyle().
		Foreground(ThinkingFg).
		Italic(true)

	t.ThinkingBody = lipgloss.NewStyle().
		Foreground(ThinkingFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ThinkingBorder).
		PaddingLeft(1)

	// Web search panel
	t.SearchHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(SearchFg)

	t.SearchTitle = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SearchURL = lipgloss.NewStyle().
		Foreground(TextMuted).
		Underline(true)

	t.SearchSuggestion = lipgloss.NewStyle().
		Foreground(SearchFg).
		Italic(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ToggleOn = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ToggleOff = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusNotice = lipgloss.NewStyle().
		Foreground(Amber)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
}
