// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deepchat/internal/api"
	"github.com/jeranaias/deepchat/internal/store"
)

// =============================================================================
// BACKEND SESSION DIRECTORY
// =============================================================================

// SessionDirectory is the backend's view of the user's sessions. A nil
// directory disables syncing; the client then works purely offline.
type SessionDirectory interface {
	CreateNewChat(ctx context.Context) (string, error)
	GetHistoryChats(ctx context.Context) ([]api.SessionInfo, error)
}

// directoryTimeout bounds the background session-directory calls.
const directoryTimeout = 10 * time.Second

// syncHistoryCmd fetches the backend session list once at startup and
// merges unknown entries into the local store as shells.
func (m Model) syncHistoryCmd() tea.Cmd {
	if m.dir == nil {
		return nil
	}
	dir := m.dir
	st := m.store

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
		defer cancel()

		infos, err := dir.GetHistoryChats(ctx)
		if err != nil {
			return historySyncedMsg{err: err}
		}

		remote := make([]store.RemoteSession, 0, len(infos))
		for _, info := range infos {
			remote = append(remote, store.RemoteSession{
				ID:      info.SessionID,
				Title:   info.Title,
				Updated: info.UpdatedAt,
			})
		}
		return historySyncedMsg{added: st.MergeRemote(remote)}
	}
}

// adoptSessionCmd asks the backend for a session id and rebinds the
// locally created session to it. Failure is tolerated; the local id
// keeps working.
func (m Model) adoptSessionCmd(localID string) tea.Cmd {
	if m.dir == nil || localID == "" {
		return nil
	}
	dir := m.dir

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
		defer cancel()

		backendID, err := dir.CreateNewChat(ctx)
		if err != nil {
			return sessionAdoptedMsg{localID: localID, err: err}
		}
		return sessionAdoptedMsg{localID: localID, backendID: backendID}
	}
}
