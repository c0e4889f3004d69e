// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator makes one logical send or regenerate operation
// correct under concurrency.
//
// Each operation walks a small state machine: Idle, Requesting on send,
// Streaming at the first protocol event, then Completed, Cancelled, or
// Errored. At most one generation is in flight per orchestrator; starting
// a new one cancels the previous best-effort and bumps a generation
// counter that makes the old operation's late callbacks no-ops.
//
// Stopping is soft: the user's stop suppresses rendering while the
// request drains quietly in the background, and the drained stream still
// commits one final, internally consistent update. Cancellation is never
// treated as an error anywhere in the pipeline.
//
// Two buffering behaviors smooth the UI. With web search enabled, answer
// deltas are held back until the search payload arrives (or a short
// timeout fires) so text never appears before its supporting panel. While
// the terminal is unfocused, deltas skip store updates entirely and flush
// as one update on focus.
package orchestrator
