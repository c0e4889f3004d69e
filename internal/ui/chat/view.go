// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/orchestrator"
	"github.com/jeranaias/deepchat/internal/protocol"
	"github.com/jeranaias/deepchat/internal/ui/styles"
)

// timeNow is swappable in tests so sidebar grouping is deterministic.
var timeNow = time.Now

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	main := m.viewport.View()
	if m.showSidebar {
		sidebar := m.renderSidebar()
		main = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		main,
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme

	left := t.HeaderBrand.Render(appName) + "  " +
		t.HeaderTitle.Render(m.sessionTitle())

	p := m.prefs.Get()
	right := t.HeaderMeta.Render(string(p.Model))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return t.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// SIDEBAR
// =============================================================================

// renderSidebar draws the grouped session list.
func (m Model) renderSidebar() string {
	t := m.theme
	width := m.sidebarWidth()
	inner := width - 2

	groups := m.store.GroupSessions(timeNow())
	cur := m.store.CurrentID()
	streaming := m.store.StreamingSession()

	var b strings.Builder
	writeGroup := func(label string, sessions []*model.Session) {
		if len(sessions) == 0 {
			return
		}
		b.WriteString(t.SidebarGroup.Render(label))
		b.WriteByte('\n')
		for _, s := range sessions {
			line := runewidth.Truncate(s.Title, inner-2, "…")
			switch {
			case s.ID == cur:
				b.WriteString(t.SessionItemCurrent.Render("▌ " + line))
			case s.ID == streaming:
				b.WriteString(t.SessionItemStreaming.Render("● " + line))
			default:
				b.WriteString(t.SessionItem.Render("  " + line))
			}
			b.WriteByte('\n')
		}
	}

	writeGroup("Today", groups.Today)
	writeGroup("This week", groups.ThisWeek)
	writeGroup("This month", groups.ThisMonth)
	writeGroup("Older", groups.Older)

	if b.Len() == 0 {
		b.WriteString(t.SessionItem.Render("No conversations"))
	}

	return t.Sidebar.
		Width(width).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderConversation builds the transcript for the viewport from the
// store snapshot plus the orchestrator's live read model.
func (m Model) renderConversation() string {
	msgs := m.orch.Messages()
	if len(msgs) == 0 {
		return m.theme.HeaderMeta.Render("\n  Start a conversation.")
	}

	th := m.orch.Thinking()
	lastAssistant := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			lastAssistant = i
			break
		}
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(m.renderUserMessage(msg))
		case model.RoleAssistant:
			live := i == lastAssistant
			b.WriteString(m.renderAssistantMessage(msg, live, th))
		}
	}

	if m.orch.IsLoading() {
		b.WriteByte('\n')
		b.WriteString(m.spin.View())
		b.WriteString(m.theme.HeaderMeta.Render(" waiting for response"))
	}

	return b.String()
}

func (m Model) renderUserMessage(msg model.Message) string {
	t := m.theme
	return t.UserLabel.Render("You") + "\n" +
		t.UserBubble.Render(msg.Content) + "\n"
}

// renderAssistantMessage renders one assistant turn. For the turn that
// is currently streaming the thinking panel comes from the live read
// model; completed turns use what was persisted on the message.
func (m Model) renderAssistantMessage(msg model.Message, live bool, th orchestrator.Thinking) string {
	t := m.theme

	var b strings.Builder
	b.WriteString(t.AssistantLabel.Render("Assistant"))
	b.WriteByte('\n')

	if live && th.Show {
		b.WriteString(m.renderThinkingPanel(th))
	} else if msg.ThinkContent != "" {
		stored := orchestrator.Thinking{
			Content:  msg.ThinkContent,
			Seconds:  msg.ThinkingTime,
			Complete: true,
			Show:     true,
			Expanded: m.cfg.UI.ShowThinking,
		}
		b.WriteString(m.renderThinkingPanel(stored))
	}

	if msg.WebSearch != nil {
		b.WriteString(m.renderSearchPanel(msg.WebSearch))
	}

	if msg.Content != "" {
		b.WriteString(m.renderMarkdown(msg.Content))
		b.WriteByte('\n')
	}

	return b.String()
}

// renderMarkdown renders assistant content through glamour, falling
// back to styled plain text when rendering is off or fails.
func (m Model) renderMarkdown(content string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.theme.AssistantText.Render(content)
}

// renderThinkingPanel draws the reasoning trace header and, when
// expanded, its body.
func (m Model) renderThinkingPanel(th orchestrator.Thinking) string {
	t := m.theme

	label := fmt.Sprintf("Thinking... (%ds)", th.Seconds)
	if th.Complete {
		label = fmt.Sprintf("Thought for %ds", th.Seconds)
	}

	out := t.ThinkingHeader.Render(label) + "\n"
	if th.Expanded && th.Content != "" {
		out += t.ThinkingBody.Render(strings.TrimSpace(th.Content)) + "\n"
	}
	return out
}

// renderSearchPanel draws the retrieved web pages and suggestions.
func (m Model) renderSearchPanel(ws *protocol.WebSearchResult) string {
	t := m.theme

	var b strings.Builder
	b.WriteString(t.SearchHeader.Render(fmt.Sprintf("Searched the web: %s (%d pages)", ws.Query, ws.PagesCount)))
	b.WriteByte('\n')

	for _, page := range ws.Pages {
		b.WriteString("  " + t.SearchTitle.Render(page.Title))
		b.WriteByte('\n')
		if page.URL != "" {
			b.WriteString("  " + t.SearchURL.Render(page.URL))
			b.WriteByte('\n')
		}
	}

	if len(ws.Suggestions) > 0 {
		b.WriteString(t.SearchSuggestion.Render("Related: " + strings.Join(ws.Suggestions, " · ")))
		b.WriteByte('\n')
	}

	return b.String()
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(
		m.theme.InputPrompt.Render("> ") + m.input.View(),
	)
}

func (m Model) renderStatusBar() string {
	t := m.theme

	if m.status != "" {
		return t.StatusBar.Width(m.width).Render(t.StatusNotice.Render(m.status))
	}

	p := m.prefs.Get()
	toggles := renderToggle(t, "search", p.WebSearch) + " " +
		renderToggle(t, "think", p.DeepThinking)

	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, t.ShortcutKey.Render(h.Key)+" "+t.ShortcutDesc.Render(h.Desc))
	}

	return t.StatusBar.Width(m.width).Render(toggles + "  " + strings.Join(parts, "  "))
}

func renderToggle(t *styles.Theme, name string, on bool) string {
	if on {
		return t.ToggleOn.Render("[" + name + "]")
	}
	return t.ToggleOff.Render("[" + name + "]")
}
