// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the deepchat backend.
//
// The central entry point is Client.ChatStream, which posts a prompt
// (with conversation history and optional attachments) and decodes the
// streamed response line by line, delivering answer, thinking, and web
// search events through StreamCallbacks. Session management endpoints
// (CreateNewChat, GetHistoryChats) tolerate the encoding differences
// between backend deployments.
//
// Errors are reported as *ClientError with a machine-checkable Type;
// cancellation of a stream is treated as normal completion, not an error.
package api
