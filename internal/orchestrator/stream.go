// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/deepchat/internal/api"
	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/protocol"
	"github.com/jeranaias/deepchat/internal/store"
)

// =============================================================================
// SEND
// =============================================================================

// Send starts a generation for the given prompt against the current
// session, creating one when none is selected. Any previous in-flight
// generation is cancelled best-effort first; at most one generation runs
// per orchestrator.
func (o *Orchestrator) Send(prompt string, files, imageFiles []api.Attachment) {
	if strings.TrimSpace(prompt) == "" && len(files) == 0 && len(imageFiles) == 0 {
		return
	}

	o.supersede()

	prefs := o.prefs.Get()
	sessionID := o.store.EnsureSession(prefs)

	// History captures the conversation before this turn.
	history := toHistory(o.store.Messages(sessionID), true)

	o.store.AddMessage(model.NewUserMessage(prompt), sessionID)
	o.store.AddMessage(model.NewAssistantMessage(), sessionID)
	o.store.SetStreamingSession(sessionID)

	gen := o.beginOperation(sessionID, o.store.UpdateAssistantMessage, prefs.WebSearch)

	req := api.ChatRequest{
		SessionID:    sessionID,
		Prompt:       prompt,
		History:      history,
		DeepThinking: o.sessionDeepThinking(sessionID, prefs),
		WebSearch:    prefs.WebSearch,
		Files:        files,
		ImageFiles:   imageFiles,
	}

	o.launch(gen, req)
}

// =============================================================================
// REGENERATE / CONTINUE
// =============================================================================

// Regenerate re-requests the last assistant turn of the current session.
// RegenerateReplace empties it first and regrows it; RegenerateContinue
// keeps the existing content and appends. No-op when the session has no
// user message to regenerate from.
func (o *Orchestrator) Regenerate(mode api.RegenerateMode) {
	sessionID := o.store.CurrentID()
	if sessionID == "" {
		return
	}

	msgs := o.store.Messages(sessionID)
	lastUser := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			lastUser = msgs[i].Content
			break
		}
	}
	if lastUser == "" {
		return
	}

	o.supersede()

	prefs := o.prefs.Get()
	o.store.SetStreamingSession(sessionID)

	// Regeneration never holds content back for search results; the
	// payload attaches whenever it arrives.
	gen := o.beginOperation(sessionID, o.store.ReplaceLastAssistantMessage, false)

	switch mode {
	case api.RegenerateContinue:
		// Seed with the existing answer so new deltas append to it.
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == model.RoleAssistant {
				o.mu.Lock()
				o.content.WriteString(msgs[i].Content)
				o.mu.Unlock()
				break
			}
		}
	default:
		// Empty content shows the loading state while the answer regrows.
		o.store.ReplaceLastAssistantMessage(store.AssistantUpdate{Content: ""}, sessionID)
	}

	history := toHistory(msgs, mode == api.RegenerateContinue)

	req := api.ChatRequest{
		SessionID:    sessionID,
		Prompt:       lastUser,
		History:      history,
		DeepThinking: o.sessionDeepThinking(sessionID, prefs),
		WebSearch:    prefs.WebSearch,
		Regenerate:   mode,
	}

	o.launch(gen, req)
}

// supersede invalidates the in-flight operation, then cancels it. The
// generation advances first: the client fires OnComplete when its context
// is cancelled, so the cancelled stream's completion must already be
// stale by the time the cancel signal lands, or it would clear a cursor
// and cancel func that now belong to the next operation.
func (o *Orchestrator) supersede() {
	o.mu.Lock()
	o.gen++
	o.mu.Unlock()
	o.cancelMgr.cancel()
}

// sessionDeepThinking reads the session's own thinking-mode snapshot,
// which the user may have toggled independently of the global preference.
func (o *Orchestrator) sessionDeepThinking(sessionID string, prefs store.Preferences) bool {
	if sess := o.store.Session(sessionID); sess != nil {
		return sess.DeepThinking
	}
	return prefs.DeepThinking
}

// toHistory converts stored messages to wire history. Assistant turns are
// dropped when keepAssistant is false (regenerate discards the answer
// being replaced).
func toHistory(msgs []model.Message, keepAssistant bool) []api.HistoryMessage {
	history := make([]api.HistoryMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == model.RoleAssistant && !keepAssistant {
			continue
		}
		if msg.IsEmpty() {
			continue
		}
		history = append(history, api.HistoryMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return history
}

// =============================================================================
// OPERATION LIFECYCLE
// =============================================================================

// beginOperation resets per-operation state and returns the new
// generation number. Callbacks capture it; any callback whose generation
// has been superseded is dropped.
func (o *Orchestrator) beginOperation(sessionID string, commit func(store.AssistantUpdate, string), holdback bool) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen++
	gen := o.gen

	o.state = StateRequesting
	o.sessionID = sessionID
	o.commit = commit
	o.done = false
	o.stopRendering = false
	o.pendingHidden = false
	o.content.Reset()
	o.webSearch = nil

	o.think.Reset()
	o.hasThinking = false
	o.thinkStart = time.Now()
	o.thinkSeconds = 0
	o.thinkComplete = false
	o.thinkExpanded = true

	if o.holdTimer != nil {
		o.holdTimer.Stop()
		o.holdTimer = nil
	}
	o.holdback = holdback
	if holdback {
		o.holdTimer = time.AfterFunc(o.searchHoldback, func() {
			o.flushHoldback(gen)
		})
	}

	return gen
}

// launch opens the stream on its own goroutine.
func (o *Orchestrator) launch(gen int, req api.ChatRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelMgr.set(cancel)

	cb := api.StreamCallbacks{
		OnMessage:   func(delta string) { o.onMessage(gen, delta) },
		OnThinking:  func(delta string) { o.onThinking(gen, delta) },
		OnWebSearch: func(result *protocol.WebSearchResult) { o.onWebSearch(gen, result) },
		OnComplete:  func() { o.onComplete(gen) },
	}

	go func() {
		if err := o.client.ChatStream(ctx, req, cb); err != nil {
			o.onStreamError(gen, err)
		}
	}()

	o.notify()
}

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

func (o *Orchestrator) onMessage(gen int, delta string) {
	o.mu.Lock()
	if gen != o.gen || o.done {
		o.mu.Unlock()
		return
	}
	if o.state == StateRequesting {
		o.state = StateStreaming
	}
	if o.stopRendering {
		o.mu.Unlock()
		return
	}

	o.content.WriteString(delta)

	if o.holdback {
		o.mu.Unlock()
		return
	}
	if !o.visible {
		o.pendingHidden = true
		o.mu.Unlock()
		return
	}

	o.commitSnapshotLocked()
	o.mu.Unlock()
	o.notifyThrottled()
}

func (o *Orchestrator) onThinking(gen int, delta string) {
	o.mu.Lock()
	if gen != o.gen || o.done || o.stopRendering {
		o.mu.Unlock()
		return
	}
	if o.state == StateRequesting {
		o.state = StateStreaming
	}

	o.think.WriteString(delta)
	o.hasThinking = true
	o.thinkSeconds = int(time.Since(o.thinkStart).Seconds())
	o.mu.Unlock()
	o.notifyThrottled()
}

func (o *Orchestrator) onWebSearch(gen int, result *protocol.WebSearchResult) {
	o.mu.Lock()
	if gen != o.gen || o.done || o.stopRendering {
		o.mu.Unlock()
		return
	}
	if o.state == StateRequesting {
		o.state = StateStreaming
	}

	o.webSearch = result

	if o.holdback {
		// The payload and everything held back commit together in one
		// update, so answer text never precedes its search panel.
		o.holdback = false
		if o.holdTimer != nil {
			o.holdTimer.Stop()
			o.holdTimer = nil
		}
		o.commitSnapshotLocked()
	}
	o.mu.Unlock()
	o.notify()
}

// flushHoldback runs when the hold-back window elapses with no search
// payload: buffered content flushes and streaming proceeds without one.
func (o *Orchestrator) flushHoldback(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.done || !o.holdback {
		o.mu.Unlock()
		return
	}
	o.holdback = false
	o.holdTimer = nil

	flushed := false
	switch {
	case o.content.Len() == 0 || o.stopRendering:
	case !o.visible:
		o.pendingHidden = true
	default:
		o.commitSnapshotLocked()
		flushed = true
	}
	o.mu.Unlock()

	if flushed {
		o.notify()
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

func (o *Orchestrator) onComplete(gen int) {
	o.mu.Lock()
	if gen != o.gen || o.done {
		o.mu.Unlock()
		return
	}
	o.done = true

	if o.holdTimer != nil {
		o.holdTimer.Stop()
		o.holdTimer = nil
	}
	o.holdback = false
	o.pendingHidden = false

	if o.hasThinking {
		o.thinkSeconds = int(time.Since(o.thinkStart).Seconds())
	}
	o.thinkComplete = true

	// One final commit carries the full content, the finished thinking
	// trace, and the search payload.
	upd := store.AssistantUpdate{Content: o.content.String()}
	if o.hasThinking {
		think := o.think.String()
		seconds := o.thinkSeconds
		upd.ThinkContent = &think
		upd.ThinkingTime = &seconds
	}
	if o.webSearch != nil {
		upd.WebSearch = o.webSearch
	}
	o.commit(upd, o.sessionID)

	if o.stopRendering {
		o.state = StateCancelled
	} else {
		o.state = StateCompleted
	}
	o.stopRendering = false

	// Cursor release and cancel cleanup stay under the lock. The gen
	// guard above proved this operation is still current, and no new
	// operation can begin while the lock is held, so both are still
	// owned here.
	o.store.SetStreamingSession("")
	o.cancelMgr.cancel()
	o.mu.Unlock()

	o.notify()
}

func (o *Orchestrator) onStreamError(gen int, err error) {
	o.mu.Lock()
	if gen != o.gen || o.done {
		o.mu.Unlock()
		return
	}
	o.done = true

	if o.holdTimer != nil {
		o.holdTimer.Stop()
		o.holdTimer = nil
	}
	o.holdback = false
	o.pendingHidden = false

	o.logger.Printf("orchestrator: stream failed: %v", err)

	// The thinking panel hides on error; the trace was cut short.
	o.thinkComplete = true
	o.hasThinking = false
	o.think.Reset()

	o.commit(store.AssistantUpdate{Content: fallbackErrorMessage}, o.sessionID)
	o.state = StateErrored
	o.stopRendering = false

	o.store.SetStreamingSession("")
	o.cancelMgr.cancel()
	o.mu.Unlock()

	o.notify()
}
