// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol decodes the deepchat streaming wire format into typed events.
package protocol

import (
	"encoding/json"
	"strings"
)

// dataPrefix marks a line that carries a JSON payload.
const dataPrefix = "data: "

// doneSentinel is the raw (non-JSON) payload that terminates a stream.
const doneSentinel = "[DONE]"

// =============================================================================
// LINE DECODER
// =============================================================================

// LineDecoder turns raw response-body chunks into protocol events. Chunks are
// appended to an internal accumulator; only fully terminated lines (delimited
// by '\n') are parsed, so a logical line split across any number of network
// chunks decodes identically to the same line fed as one chunk. The trailing
// partial line stays buffered until the next Feed or the final Flush.
//
// The decoder emits at most one EventDone, whether it comes from the explicit
// "[DONE]" sentinel or from Flush at clean end of body. Events after done are
// suppressed.
//
// LineDecoder is not safe for concurrent use; the stream client drives it
// from a single reader loop.
type LineDecoder struct {
	buf  strings.Builder
	done bool
}

// NewLineDecoder creates a decoder with an empty accumulator.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{}
}

// Feed appends a chunk and returns the events completed by it, in wire order.
func (d *LineDecoder) Feed(chunk []byte) []Event {
	if d.done || len(chunk) == 0 {
		return nil
	}

	d.buf.Write(chunk)
	data := d.buf.String()

	// Anything after the last newline is an unterminated line; keep it.
	idx := strings.LastIndexByte(data, '\n')
	if idx < 0 {
		return nil
	}
	rest := data[idx+1:]
	complete := data[:idx]

	d.buf.Reset()
	d.buf.WriteString(rest)

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
			if ev.Kind == EventDone {
				break
			}
		}
	}
	return events
}

// Flush drains any final unterminated line and terminates the stream. It
// guarantees exactly one EventDone per stream: if the sentinel never arrived,
// Flush synthesizes it for clean end of body.
func (d *LineDecoder) Flush() []Event {
	if d.done {
		return nil
	}

	var events []Event
	if line := d.buf.String(); line != "" {
		d.buf.Reset()
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	if !d.done {
		d.done = true
		events = append(events, Event{Kind: EventDone})
	}
	return events
}

// Done reports whether the stream has terminated.
func (d *LineDecoder) Done() bool {
	return d.done
}

// =============================================================================
// LINE CLASSIFICATION
// =============================================================================

// wirePayload is the JSON shape carried by "data: " lines.
type wirePayload struct {
	Code   int              `json:"code"`
	Type   string           `json:"type"`
	Answer string           `json:"answer"`
	Data   *WebSearchResult `json:"data"`
}

// decodeLine classifies a single line. Returns ok=false for lines that carry
// no event (blank lines, non-200 payloads, unrecognized typed payloads).
func (d *LineDecoder) decodeLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Event{}, false
	}

	if !strings.HasPrefix(line, dataPrefix) {
		// Lines outside the event framing are tolerated as plain answer
		// text. This mirrors the server's historical behavior; whether it
		// is an intentional protocol feature is an open question, so the
		// fallback is preserved but nothing new should rely on it.
		return Event{Kind: EventAnswer, Delta: line}, true
	}

	payload := line[len(dataPrefix):]
	if payload == doneSentinel {
		d.done = true
		return Event{Kind: EventDone}, true
	}

	var msg wirePayload
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		// A single malformed line must not kill the stream; fall back to
		// treating the payload as answer text.
		return Event{Kind: EventAnswer, Delta: payload}, true
	}

	if msg.Code != 200 {
		return Event{}, false
	}

	switch msg.Type {
	case "answer":
		return Event{Kind: EventAnswer, Delta: msg.Answer}, true
	case "think":
		return Event{Kind: EventThink, Delta: msg.Answer}, true
	case "web_search":
		if msg.Data == nil {
			return Event{}, false
		}
		return Event{Kind: EventWebSearch, Search: msg.Data}, true
	default:
		// Unrecognized but well-formed payloads are dropped for forward
		// compatibility.
		return Event{}, false
	}
}
