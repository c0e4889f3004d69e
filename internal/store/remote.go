// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/jeranaias/deepchat/internal/model"
)

// =============================================================================
// REMOTE HISTORY MERGE
// =============================================================================

// RemoteSession is a backend-side session descriptor, as returned by the
// history endpoint.
type RemoteSession struct {
	ID      string
	Title   string
	Updated time.Time
}

// MergeRemote adds shell entries for backend sessions unknown locally
// and returns how many were added. Known ids keep their local state
// untouched; messages are not fetched, a merged session fills once the
// user streams into it.
func (s *Store) MergeRemote(sessions []RemoteSession) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, rs := range sessions {
		if rs.ID == "" || s.findLocked(rs.ID) != nil {
			continue
		}

		// Merged shells default to Qwen; the model is corrected when
		// the user streams into the session.
		sess := model.NewSession(model.ModelQwen, false)
		sess.ID = rs.ID
		if rs.Title != "" {
			sess.Title = rs.Title
		}
		if !rs.Updated.IsZero() {
			sess.LastUpdated = rs.Updated
		}
		s.sessions = append(s.sessions, sess)
		added++
	}

	if added > 0 {
		s.persist()
	}
	return added
}
