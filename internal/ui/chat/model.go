// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/deepchat/internal/config"
	"github.com/jeranaias/deepchat/internal/orchestrator"
	"github.com/jeranaias/deepchat/internal/store"
	"github.com/jeranaias/deepchat/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the root Bubble Tea model for the chat view.
//
// It is a pure projection: conversation state lives in the store and the
// orchestrator, and every View call re-reads their snapshots. The model
// itself only owns widget state (input, viewport, sidebar visibility)
// and transient status lines.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap

	store *store.Store
	prefs *store.PrefStore
	orch  *orchestrator.Orchestrator
	dir   SessionDirectory

	input    textarea.Model
	viewport viewport.Model
	spin     spinner.Model

	// Markdown renderer, rebuilt on resize so word wrap tracks the
	// viewport width. Nil when markdown rendering is disabled.
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	showSidebar bool

	// Transient status line shown in the status bar.
	status    string
	statusSeq int
}

// New creates the chat view over an already-constructed store,
// preference store and orchestrator. dir may be nil to run without a
// backend session directory.
func New(cfg *config.Config, theme *styles.Theme, st *store.Store, prefs *store.PrefStore, orch *orchestrator.Orchestrator, dir SessionDirectory) Model {
	ti := textarea.New()
	ti.Placeholder = "Ask anything... (Enter to send)"
	ti.CharLimit = 8000
	ti.SetHeight(1)
	ti.ShowLineNumbers = false
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return Model{
		cfg:         cfg,
		theme:       theme,
		keys:        DefaultKeyMap(),
		store:       st,
		prefs:       prefs,
		orch:        orch,
		dir:         dir,
		input:       ti,
		spin:        sp,
		showSidebar: true,
	}
}

// Init starts the cursor blink and spinner tickers and kicks off the
// one-time backend history sync.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, m.syncHistoryCmd())
}

// resize recomputes widget dimensions and rebuilds the markdown
// renderer for the new wrap width.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := m.chatWidth()
	m.input.SetWidth(chatWidth - 2)

	// Header, input border, input line, status bar.
	vpHeight := height - 4
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = vpHeight
	}

	m.renderer = nil
	if m.cfg.UI.Markdown {
		wrap := chatWidth - 2
		if wrap < 20 {
			wrap = 20
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.renderer = r
		}
	}

	m.refreshViewport(true)
}

// chatWidth is the width available to the transcript column.
func (m Model) chatWidth() int {
	w := m.width
	if m.showSidebar {
		w -= m.sidebarWidth()
	}
	if w < 20 {
		w = 20
	}
	return w
}

// sidebarWidth clamps the configured sidebar width to the terminal.
func (m Model) sidebarWidth() int {
	w := m.cfg.UI.SidebarWidth
	if w <= 0 {
		w = 32
	}
	if m.width > 0 && w > m.width/2 {
		w = m.width / 2
	}
	return w
}

// refreshViewport re-renders the transcript into the viewport.
// When follow is true the view snaps to the bottom, which is the
// behavior wanted while a response streams in.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	if follow {
		m.viewport.GotoBottom()
	}
}

// setStatus shows a transient status line and returns the command that
// clears it after a few seconds.
func (m *Model) setStatus(text string) tea.Cmd {
	m.status = text
	m.statusSeq++
	seq := m.statusSeq
	return statusTimeout(seq)
}

// sessionTitle returns the current session's title for the header.
func (m Model) sessionTitle() string {
	if sess := m.store.CurrentSession(); sess != nil {
		return sess.Title
	}
	return "No conversation"
}

var _ tea.Model = Model{}

// appName is shown in the header brand slot.
const appName = "deepchat"
