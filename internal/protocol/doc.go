// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol decodes the deepchat streaming wire format into typed events.
//
// The backend streams a chunked HTTP body made of newline-delimited lines.
// Lines prefixed with "data: " carry a JSON payload of shape
// {code, type, answer?, data?}; the raw payload "[DONE]" terminates the
// stream. Network chunk boundaries carry no meaning: the decoder buffers
// partial lines so a split line parses identically to a whole one.
//
// # Key Types
//
//   - Event: closed union over the four event kinds (answer, think,
//     web_search, done)
//   - LineDecoder: incremental chunk-to-event decoder
//   - WebSearchResult: structured web-search payload
//
// # Usage
//
// Feed response-body chunks as they arrive, then flush at end of body:
//
//	dec := protocol.NewLineDecoder()
//	for each chunk {
//	    for _, ev := range dec.Feed(chunk) {
//	        handle(ev)
//	    }
//	}
//	for _, ev := range dec.Flush() {
//	    handle(ev)
//	}
//
// Exactly one EventDone is emitted per stream, whether the sentinel arrived
// or the body simply ended.
package protocol
