// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/deepchat/internal/api"
	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/protocol"
	"github.com/jeranaias/deepchat/internal/store"
)

// fallbackErrorMessage is committed as the assistant's content when a
// stream fails with a transport error.
const fallbackErrorMessage = "Sorry, something went wrong. Please try again later."

// defaultSearchHoldback is how long answer deltas are held back waiting
// for a web search payload before flushing without one.
const defaultSearchHoldback = 1500 * time.Millisecond

// defaultNotifyRate caps read-model change notifications so a fast stream
// does not drown the UI in redraws.
const defaultNotifyRate = 30

// Streamer issues one streaming chat request. Satisfied by *api.Client;
// tests substitute scripted implementations.
type Streamer interface {
	ChatStream(ctx context.Context, req api.ChatRequest, cb api.StreamCallbacks) error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator bridges stream events to store mutations, owning the single
// in-flight generation's lifecycle. It never mutates sessions directly;
// every write goes through the store's methods, and the store's streaming
// cursor drops anything arriving from a superseded operation.
type Orchestrator struct {
	store  *store.Store
	prefs  *store.PrefStore
	client Streamer
	logger *log.Logger

	notify  func()
	limiter *rate.Limiter

	searchHoldback time.Duration

	mu sync.Mutex

	// gen identifies the current operation. Callbacks capture the value
	// at start and are dropped when it has moved on, so a superseded
	// stream can never touch current state.
	gen int

	state     State
	sessionID string
	cancelMgr *cancelManager

	// commit is the store mutation for the current operation: update for
	// send, replace for regenerate and continue.
	commit func(store.AssistantUpdate, string)

	content strings.Builder
	done    bool

	// stopRendering freezes content growth after a soft stop; the
	// request drains in the background and commits the frozen content.
	stopRendering bool

	// visible tracks terminal focus. Deltas arriving while hidden skip
	// store updates and flush as one update on focus.
	visible       bool
	pendingHidden bool

	// holdback buffers answer deltas until a web search payload arrives
	// or the holdback timer fires.
	holdback  bool
	holdTimer *time.Timer

	think         strings.Builder
	hasThinking   bool
	thinkStart    time.Time
	thinkSeconds  int
	thinkComplete bool
	thinkExpanded bool

	webSearch *protocol.WebSearchResult
}

// Options configures an Orchestrator.
type Options struct {
	// SearchHoldback overrides the web-search hold-back window.
	SearchHoldback time.Duration

	// Notify is called when the read model changes, rate-limited except
	// at operation boundaries. Typically wakes the UI event loop.
	Notify func()

	// NotifyPerSecond caps Notify invocations (default 30).
	NotifyPerSecond int

	// Logger receives diagnostics. Nil discards.
	Logger *log.Logger
}

// New creates an orchestrator over the given store, preferences and
// stream client.
func New(st *store.Store, prefs *store.PrefStore, client Streamer, opts Options) *Orchestrator {
	if opts.SearchHoldback <= 0 {
		opts.SearchHoldback = defaultSearchHoldback
	}
	if opts.NotifyPerSecond <= 0 {
		opts.NotifyPerSecond = defaultNotifyRate
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Notify == nil {
		opts.Notify = func() {}
	}

	return &Orchestrator{
		store:          st,
		prefs:          prefs,
		client:         client,
		logger:         opts.Logger,
		notify:         opts.Notify,
		limiter:        rate.NewLimiter(rate.Limit(opts.NotifyPerSecond), 1),
		searchHoldback: opts.SearchHoldback,
		cancelMgr:      newCancelManager(),
		visible:        true,
	}
}

// =============================================================================
// READ MODEL
// =============================================================================

// Thinking is the read model for the reasoning-trace panel.
type Thinking struct {
	Content  string
	Seconds  int
	Complete bool
	Show     bool
	Expanded bool
}

// Messages returns the current session's messages, straight from the
// store's snapshot.
func (o *Orchestrator) Messages() []model.Message {
	return o.store.Messages("")
}

// State returns the current operation state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsLoading reports whether a generation is in flight.
func (o *Orchestrator) IsLoading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.active()
}

// Thinking returns the reasoning-trace read model.
func (o *Orchestrator) Thinking() Thinking {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Thinking{
		Content:  o.think.String(),
		Seconds:  o.thinkSeconds,
		Complete: o.thinkComplete,
		Show:     o.hasThinking,
		Expanded: o.thinkExpanded,
	}
}

// ToggleThinking flips the thinking panel's expanded state.
func (o *Orchestrator) ToggleThinking() {
	o.mu.Lock()
	o.thinkExpanded = !o.thinkExpanded
	o.mu.Unlock()
	o.notify()
}

// WebSearch returns the search payload of the current operation, nil when
// none arrived.
func (o *Orchestrator) WebSearch() *protocol.WebSearchResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.webSearch
}

// =============================================================================
// VISIBILITY AND STOP
// =============================================================================

// SetVisible records terminal focus. While hidden, incoming deltas skip
// store updates; regaining focus flushes everything buffered as one
// update.
func (o *Orchestrator) SetVisible(visible bool) {
	o.mu.Lock()
	flush := visible && !o.visible && o.pendingHidden && o.state.active()
	o.visible = visible
	if flush {
		o.pendingHidden = false
		o.commitSnapshotLocked()
	}
	o.mu.Unlock()

	if flush {
		o.notify()
	}
}

// StopStreaming soft-stops the current generation: rendering is suppressed
// from here on but the request drains in the background, so the store
// still receives one internally consistent completion. Not an error; the
// operation resolves as Cancelled.
func (o *Orchestrator) StopStreaming() {
	o.mu.Lock()
	if !o.state.active() {
		o.mu.Unlock()
		return
	}
	o.stopRendering = true
	o.mu.Unlock()

	// The cursor clears now so the user can move between sessions while
	// the stopped request drains.
	o.store.SetStreamingSession("")
	o.notify()
}

// commitSnapshotLocked pushes the accumulated content (plus thinking and
// search data when present) to the store. Callers hold mu.
func (o *Orchestrator) commitSnapshotLocked() {
	upd := store.AssistantUpdate{Content: o.content.String()}
	if o.hasThinking {
		think := o.think.String()
		upd.ThinkContent = &think
	}
	if o.webSearch != nil {
		upd.WebSearch = o.webSearch
	}
	o.commit(upd, o.sessionID)
}

// notifyThrottled wakes the UI unless the rate limiter says the last wake
// was too recent. Operation boundaries bypass this via notify directly.
func (o *Orchestrator) notifyThrottled() {
	if o.limiter.Allow() {
		o.notify()
	}
}
