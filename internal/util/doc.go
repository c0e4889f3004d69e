// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across deepchat.
//
// Currently: atomic file writes (used by the session and preference stores
// so a crash never leaves half-written JSON on disk) and width-aware string
// truncation for titles and previews.
package util
