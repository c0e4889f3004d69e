// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deepchat/internal/api"
	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/store"
)

// statusDuration is how long a transient status line stays visible.
const statusDuration = 4 * time.Second

// statusTimeout schedules the expiry of a status line.
func statusTimeout(seq int) tea.Cmd {
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		// Returning focus flushes any deltas buffered while hidden.
		m.orch.SetVisible(true)
		m.refreshViewport(true)
		return m, nil

	case tea.BlurMsg:
		m.orch.SetVisible(false)
		return m, nil

	case RefreshMsg:
		m.refreshViewport(true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.setStatus("export failed: " + msg.err.Error())
		}
		return m, m.setStatus("exported to " + msg.path)

	case historySyncedMsg:
		if msg.err != nil {
			// Offline start is fine; the local store is authoritative.
			return m, nil
		}
		if msg.added > 0 {
			m.refreshViewport(false)
			return m, m.setStatus(fmt.Sprintf("synced %d conversations", msg.added))
		}
		return m, nil

	case sessionAdoptedMsg:
		if msg.err == nil && msg.backendID != "" {
			m.store.AdoptSessionID(msg.localID, msg.backendID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey dispatches control chords; anything unmatched falls through
// to the textarea and viewport.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Submit):
		return m.submit()

	case key.Matches(msg, k.Stop):
		if m.orch.IsLoading() {
			m.orch.StopStreaming()
			return m, m.setStatus("response stopped")
		}
		return m, nil

	case key.Matches(msg, k.NewSession):
		id := m.store.CreateSession(m.prefs.Get())
		m.refreshViewport(true)
		return m, m.adoptSessionCmd(id)

	case key.Matches(msg, k.DeleteSession):
		return m.deleteCurrentSession()

	case key.Matches(msg, k.PrevSession):
		return m.cycleSession(-1)

	case key.Matches(msg, k.NextSession):
		return m.cycleSession(1)

	case key.Matches(msg, k.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.resize(m.width, m.height)
		return m, nil

	case key.Matches(msg, k.Regenerate):
		m.orch.Regenerate(api.RegenerateReplace)
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, k.Continue):
		m.orch.Regenerate(api.RegenerateContinue)
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, k.ToggleThink):
		m.orch.ToggleThinking()
		m.refreshViewport(false)
		return m, nil

	case key.Matches(msg, k.WebSearch):
		p := m.prefs.Get()
		m.prefs.SetWebSearch(!p.WebSearch)
		return m, m.setStatus(toggleStatus("web search", !p.WebSearch))

	case key.Matches(msg, k.DeepThinking):
		p := m.prefs.Get()
		m.prefs.SetDeepThinking(!p.DeepThinking)
		if id := m.store.CurrentID(); id != "" {
			m.store.SetDeepThinking(id, !p.DeepThinking)
		}
		return m, m.setStatus(toggleStatus("deep thinking", !p.DeepThinking))

	case key.Matches(msg, k.CycleModel):
		return m.cycleModel()

	case key.Matches(msg, k.Export):
		return m, m.exportCmd()

	case key.Matches(msg, k.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, k.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends the typed prompt to the orchestrator.
func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	if m.orch.IsLoading() {
		return m, m.setStatus("still responding, Esc to stop")
	}

	m.input.Reset()
	m.orch.Send(prompt, nil, nil)
	m.refreshViewport(true)
	return m, nil
}

// deleteCurrentSession removes the active session, refusing while it
// streams.
func (m Model) deleteCurrentSession() (tea.Model, tea.Cmd) {
	id := m.store.CurrentID()
	if id == "" {
		return m, nil
	}
	if m.store.StreamingSession() == id {
		return m, m.setStatus("cannot delete while responding")
	}
	m.store.DeleteSession(id)
	m.refreshViewport(true)
	return m, nil
}

// cycleSession moves the selection through the sidebar order.
func (m Model) cycleSession(delta int) (tea.Model, tea.Cmd) {
	sessions := m.store.Sessions()
	if len(sessions) < 2 {
		return m, nil
	}

	cur := m.store.CurrentID()
	idx := 0
	for i, s := range sessions {
		if s.ID == cur {
			idx = i
			break
		}
	}

	next := (idx + delta + len(sessions)) % len(sessions)
	if err := m.store.SelectSession(sessions[next].ID); err != nil {
		if errors.Is(err, store.ErrStreamActive) {
			return m, m.setStatus("wait for the current response to finish")
		}
		return m, m.setStatus(err.Error())
	}

	m.refreshViewport(true)
	return m, nil
}

// cycleModel flips the preferred model and applies it to the current
// session so the next request uses it.
func (m Model) cycleModel() (tea.Model, tea.Cmd) {
	p := m.prefs.Get()
	next := model.ModelQwen
	if p.Model == model.ModelQwen {
		next = model.ModelDeepSeek
	}
	m.prefs.SetModel(next)
	if id := m.store.CurrentID(); id != "" {
		m.store.SetSessionModel(id, next)
	}
	return m, m.setStatus("model: " + string(next))
}

func toggleStatus(name string, on bool) string {
	if on {
		return fmt.Sprintf("%s on", name)
	}
	return fmt.Sprintf("%s off", name)
}
