// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Session: one conversation thread with messages and per-session
//     generation settings (model, deep thinking)
//   - Message: single turn with role, content, timestamp and optional
//     thinking trace / web-search payload
//   - Role: user or assistant
//   - ModelType: backend model selection (QWEN, DEEPSEEK)
//
// The session store in internal/store is the sole mutator of these values;
// other packages receive copies or read-only views.
package model
