// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sort"
	"time"

	"github.com/jeranaias/deepchat/internal/model"
)

// =============================================================================
// SESSION GROUPING
// =============================================================================

// SessionGroups buckets sessions by recency for the sidebar. Each bucket
// is ordered most recent first.
type SessionGroups struct {
	Today     []*model.Session
	ThisWeek  []*model.Session
	ThisMonth []*model.Session
	Older     []*model.Session
}

// GroupSessions buckets every session by its last-updated time relative
// to now: today, earlier this week, earlier this month, older.
func (s *Store) GroupSessions(now time.Time) SessionGroups {
	sessions := s.Sessions()

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
	})

	year, month, day := now.Date()
	startOfDay := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -7)
	startOfMonth := startOfDay.AddDate(0, -1, 0)

	var groups SessionGroups
	for _, sess := range sessions {
		switch {
		case !sess.LastUpdated.Before(startOfDay):
			groups.Today = append(groups.Today, sess)
		case !sess.LastUpdated.Before(startOfWeek):
			groups.ThisWeek = append(groups.ThisWeek, sess)
		case !sess.LastUpdated.Before(startOfMonth):
			groups.ThisMonth = append(groups.ThisMonth, sess)
		default:
			groups.Older = append(groups.Older, sess)
		}
	}
	return groups
}
