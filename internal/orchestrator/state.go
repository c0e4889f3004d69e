// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

// =============================================================================
// OPERATION STATE MACHINE
// =============================================================================

// State is the lifecycle stage of the current (or most recent) generation.
type State int

const (
	// StateIdle means no generation has run or the last one's results
	// were superseded.
	StateIdle State = iota
	// StateRequesting means the request is open but no byte has arrived.
	StateRequesting
	// StateStreaming means protocol events are being processed.
	StateStreaming
	// StateCompleted means the stream finished normally.
	StateCompleted
	// StateCancelled means the user stopped the stream; its request was
	// allowed to drain quietly.
	StateCancelled
	// StateErrored means the stream failed with a transport error.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// active reports whether a generation is in flight.
func (s State) active() bool {
	return s == StateRequesting || s == StateStreaming
}
