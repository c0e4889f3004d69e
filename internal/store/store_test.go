// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// =============================================================================
// SESSION LIFECYCLE TESTS
// =============================================================================

func TestCreateSession(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(Preferences{Model: model.ModelDeepSeek, DeepThinking: true})

	if id == "" {
		t.Fatal("CreateSession returned empty id")
	}

	if s.CurrentID() != id {
		t.Errorf("CurrentID = %q, want %q", s.CurrentID(), id)
	}

	sess := s.CurrentSession()
	if sess == nil {
		t.Fatal("CurrentSession returned nil")
	}
	if sess.Model != model.ModelDeepSeek || !sess.DeepThinking {
		t.Errorf("session settings not seeded from preferences: %+v", sess)
	}
	if len(sess.Messages) != 0 {
		t.Errorf("new session has %d messages, want 0", len(sess.Messages))
	}
}

func TestEnsureSession_ReusesCurrent(t *testing.T) {
	s := newTestStore(t)

	first := s.CreateSession(DefaultPreferences())
	second := s.EnsureSession(DefaultPreferences())

	if second != first {
		t.Errorf("EnsureSession = %q, want existing %q", second, first)
	}
}

func TestEnsureSession_CreatesWhenNoneSelected(t *testing.T) {
	s := newTestStore(t)

	id := s.EnsureSession(DefaultPreferences())

	if id == "" {
		t.Fatal("EnsureSession returned empty id")
	}
	if s.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", s.SessionCount())
	}
}

func TestDeleteSession_ClearsCurrent(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.DeleteSession(id)

	if s.CurrentID() != "" {
		t.Errorf("CurrentID = %q after deleting current session, want empty", s.CurrentID())
	}
	if s.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", s.SessionCount())
	}
}

func TestDeleteSession_UnknownIDIsNoOp(t *testing.T) {
	s := newTestStore(t)

	s.CreateSession(DefaultPreferences())
	s.DeleteSession("no-such-id")

	if s.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", s.SessionCount())
	}
}

func TestSelectSession(t *testing.T) {
	s := newTestStore(t)

	a := s.CreateSession(DefaultPreferences())
	b := s.CreateSession(DefaultPreferences())

	if err := s.SelectSession(a); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}
	if s.CurrentID() != a {
		t.Errorf("CurrentID = %q, want %q", s.CurrentID(), a)
	}

	// Unknown id is a no-op, not an error.
	if err := s.SelectSession("no-such-id"); err != nil {
		t.Errorf("SelectSession(unknown) = %v, want nil", err)
	}
	if s.CurrentID() != a {
		t.Errorf("CurrentID changed by unknown select")
	}

	_ = b
}

func TestSelectSession_RefusedWhileOtherSessionStreams(t *testing.T) {
	s := newTestStore(t)

	a := s.CreateSession(DefaultPreferences())
	b := s.CreateSession(DefaultPreferences())

	s.SetStreamingSession(b)

	err := s.SelectSession(a)
	if err != ErrStreamActive {
		t.Errorf("SelectSession during foreign stream = %v, want ErrStreamActive", err)
	}

	// Selecting the streaming session itself is allowed.
	if err := s.SelectSession(b); err != nil {
		t.Errorf("SelectSession(streaming session) = %v, want nil", err)
	}
}

func TestClearSessions(t *testing.T) {
	s := newTestStore(t)

	s.CreateSession(DefaultPreferences())
	s.CreateSession(DefaultPreferences())
	s.SetStreamingSession(s.CurrentID())

	s.ClearSessions()

	if s.SessionCount() != 0 || s.CurrentID() != "" || s.StreamingSession() != "" {
		t.Error("ClearSessions left residual state")
	}
}

// =============================================================================
// MESSAGE MUTATION TESTS
// =============================================================================

func TestAddMessage_DerivesTitleFromFirstUserMessage(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("Explain the difference between goroutines and threads"), id)

	sess := s.Session(id)
	if sess.Title != "Explain the differen..." {
		t.Errorf("Title = %q", sess.Title)
	}
}

func TestAddMessage_ExplicitTitleNotOverwritten(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.UpdateSessionTitle(id, "My chat")
	s.AddMessage(model.NewUserMessage("hello"), id)

	if got := s.Session(id).Title; got != "My chat" {
		t.Errorf("Title = %q, want 'My chat'", got)
	}
}

func TestAddMessage_DroppedWhenCursorOnOtherSession(t *testing.T) {
	s := newTestStore(t)

	a := s.CreateSession(DefaultPreferences())
	b := s.CreateSession(DefaultPreferences())

	s.SetStreamingSession(b)
	s.AddMessage(model.NewUserMessage("stale"), a)

	if n := len(s.Messages(a)); n != 0 {
		t.Errorf("session a has %d messages, want 0 (stale add must drop)", n)
	}
}

func TestAddMessage_NoSessionIsNoOp(t *testing.T) {
	s := newTestStore(t)

	// No session exists and none targeted; appends never create sessions.
	s.AddMessage(model.NewUserMessage("hello"), "")

	if s.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", s.SessionCount())
	}
}

func TestUpdateAssistantMessage(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("hi"), id)
	s.AddMessage(model.NewAssistantMessage(), id)

	think := "reasoning"
	s.UpdateAssistantMessage(AssistantUpdate{Content: "Hello", ThinkContent: &think}, id)

	msgs := s.Messages(id)
	last := msgs[len(msgs)-1]
	if last.Content != "Hello" || last.ThinkContent != "reasoning" {
		t.Errorf("last message = %+v", last)
	}
}

func TestUpdateAssistantMessage_PartialFieldsPreserved(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewAssistantMessage(), id)

	search := &protocol.WebSearchResult{Query: "go"}
	s.UpdateAssistantMessage(AssistantUpdate{Content: "A", WebSearch: search}, id)

	// An update without the search payload must not clobber it.
	s.UpdateAssistantMessage(AssistantUpdate{Content: "AB"}, id)

	msgs := s.Messages(id)
	last := msgs[len(msgs)-1]
	if last.Content != "AB" {
		t.Errorf("Content = %q, want 'AB'", last.Content)
	}
	if last.WebSearch == nil || last.WebSearch.Query != "go" {
		t.Error("WebSearch payload clobbered by later update lacking it")
	}
}

func TestUpdateAssistantMessage_LastMessageNotAssistant(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("hi"), id)

	s.UpdateAssistantMessage(AssistantUpdate{Content: "nope"}, id)

	msgs := s.Messages(id)
	if msgs[0].Content != "hi" {
		t.Errorf("user message mutated: %+v", msgs[0])
	}
}

func TestReplaceLastAssistantMessage_ScansBackward(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("q1"), id)
	assistant := model.NewAssistantMessage()
	assistant.Content = "old answer"
	s.AddMessage(assistant, id)
	s.AddMessage(model.NewUserMessage("q2"), id)

	s.ReplaceLastAssistantMessage(AssistantUpdate{Content: "new answer"}, id)

	msgs := s.Messages(id)
	if msgs[1].Content != "new answer" {
		t.Errorf("messages[1].Content = %q, want 'new answer'", msgs[1].Content)
	}
	if msgs[2].Content != "q2" {
		t.Errorf("trailing user message mutated: %q", msgs[2].Content)
	}
}

func TestReplaceLastAssistantMessage_NoAssistantIsNoOp(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("only user"), id)

	s.ReplaceLastAssistantMessage(AssistantUpdate{Content: "x"}, id)

	if got := s.Messages(id)[0].Content; got != "only user" {
		t.Errorf("Content = %q", got)
	}
}

// =============================================================================
// METADATA TESTS
// =============================================================================

func TestUpdateSessionTitle_EmptyFallsBackToPlaceholder(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.UpdateSessionTitle(id, "   ")

	if got := s.Session(id).Title; got != model.DefaultTitle {
		t.Errorf("Title = %q, want placeholder", got)
	}
}

func TestUpdateSessionTitle_Trims(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.UpdateSessionTitle(id, "  padded  ")

	if got := s.Session(id).Title; got != "padded" {
		t.Errorf("Title = %q, want 'padded'", got)
	}
}

func TestSetSessionModelAndDeepThinking(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.SetSessionModel(id, model.ModelDeepSeek)
	s.SetDeepThinking(id, true)

	sess := s.Session(id)
	if sess.Model != model.ModelDeepSeek || !sess.DeepThinking {
		t.Errorf("session = %+v", sess)
	}
}

func TestAdoptSessionID(t *testing.T) {
	s := newTestStore(t)

	local := s.CreateSession(DefaultPreferences())
	s.SetStreamingSession(local)

	s.AdoptSessionID(local, "backend-42")

	if s.CurrentID() != "backend-42" {
		t.Errorf("CurrentID = %q", s.CurrentID())
	}
	if s.StreamingSession() != "backend-42" {
		t.Errorf("StreamingSession = %q", s.StreamingSession())
	}
	if s.Session("backend-42") == nil {
		t.Error("session not reachable under adopted id")
	}
}

// =============================================================================
// SNAPSHOT ISOLATION TESTS
// =============================================================================

func TestReadersReceiveCopies(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("original"), id)

	snapshot := s.Session(id)
	snapshot.Messages[0].Content = "mutated"
	snapshot.Title = "mutated"

	sess := s.Session(id)
	if sess.Messages[0].Content != "original" {
		t.Error("mutating a snapshot leaked into the store")
	}
}

// =============================================================================
// PERSISTENCE TESTS
// =============================================================================

func TestPersistenceAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	id := s1.CreateSession(DefaultPreferences())
	s1.AddMessage(model.NewUserMessage("persist me"), id)

	s2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore (reload): %v", err)
	}

	if s2.CurrentID() != id {
		t.Errorf("reloaded CurrentID = %q, want %q", s2.CurrentID(), id)
	}

	msgs := s2.Messages(id)
	if len(msgs) != 1 || msgs[0].Content != "persist me" {
		t.Errorf("reloaded messages = %+v", msgs)
	}
}

func TestStreamedUpdatesDebounceWrites(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("q"), id)
	s.AddMessage(model.NewAssistantMessage(), id)

	s.SetStreamingSession(id)
	s.UpdateAssistantMessage(AssistantUpdate{Content: "delta 1"}, id)
	s.UpdateAssistantMessage(AssistantUpdate{Content: "delta 1 delta 2"}, id)

	// Mid-stream updates coalesce instead of rewriting the file per
	// delta; the disk still holds the pre-stream placeholder.
	mid, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore (mid-stream): %v", err)
	}
	if msgs := mid.Messages(id); len(msgs) != 2 || msgs[1].Content != "" {
		t.Errorf("mid-stream disk content = %+v, want empty placeholder", msgs)
	}

	// Clearing the cursor ends the stream and flushes the pending write.
	s.SetStreamingSession("")

	after, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore (after flush): %v", err)
	}
	if msgs := after.Messages(id); len(msgs) != 2 || msgs[1].Content != "delta 1 delta 2" {
		t.Errorf("flushed disk content = %+v, want final delta", msgs)
	}
}

func TestStreamedUpdatesFlushAfterDebounceWindow(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("q"), id)
	s.AddMessage(model.NewAssistantMessage(), id)

	s.SetStreamingSession(id)
	s.UpdateAssistantMessage(AssistantUpdate{Content: "partial"}, id)

	deadline := time.Now().Add(2 * time.Second)
	for {
		reloaded, err := NewStore(dir, nil)
		if err != nil {
			t.Fatalf("NewStore (reload): %v", err)
		}
		msgs := reloaded.Messages(id)
		if len(msgs) == 2 && msgs[1].Content == "partial" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced write never reached disk, last read %+v", msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoad_CorruptSessionsIsError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, sessionsFile), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(dir, nil); err == nil {
		t.Error("expected error loading corrupt sessions file")
	}
}

// =============================================================================
// EXPORT / IMPORT TESTS
// =============================================================================

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)

	a := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("first"), a)
	b := s.CreateSession(Preferences{Model: model.ModelDeepSeek, DeepThinking: true})
	s.AddMessage(model.NewUserMessage("second"), b)

	before := s.Sessions()

	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if err := s.Import(data); err != nil {
		t.Fatalf("Import: %v", err)
	}

	after := s.Sessions()
	if len(after) != len(before) {
		t.Fatalf("session count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Title != before[i].Title {
			t.Errorf("session %d: %+v != %+v", i, after[i], before[i])
		}
		if len(after[i].Messages) != len(before[i].Messages) {
			t.Errorf("session %d message count changed", i)
			continue
		}
		for j := range before[i].Messages {
			if after[i].Messages[j].Content != before[i].Messages[j].Content {
				t.Errorf("session %d message %d content changed", i, j)
			}
		}
	}
}

func TestImport_MalformedLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	s.AddMessage(model.NewUserMessage("keep"), id)

	if err := s.Import([]byte("{broken")); err == nil {
		t.Fatal("expected error importing malformed JSON")
	}

	if s.SessionCount() != 1 {
		t.Errorf("SessionCount = %d after failed import, want 1", s.SessionCount())
	}
	if got := s.Messages(id); len(got) != 1 || got[0].Content != "keep" {
		t.Errorf("messages = %+v after failed import", got)
	}
}

func TestImport_RepairsMissingFields(t *testing.T) {
	s := newTestStore(t)

	payload := `[{"id":"bare","messages":null}]`
	if err := s.Import([]byte(payload)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	sess := s.Session("bare")
	if sess == nil {
		t.Fatal("imported session not found")
	}
	if sess.Title != model.DefaultTitle {
		t.Errorf("Title = %q, want placeholder", sess.Title)
	}
	if sess.LastUpdated.IsZero() {
		t.Error("LastUpdated not repaired")
	}
	if sess.Messages == nil {
		t.Error("Messages not repaired to empty slice")
	}
}

func TestImport_TimestampsAreISO8601(t *testing.T) {
	s := newTestStore(t)

	id := s.CreateSession(DefaultPreferences())
	_ = id

	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("export not valid JSON: %v", err)
	}

	var stamp string
	if err := json.Unmarshal(raw[0]["timestamp"], &stamp); err != nil {
		t.Fatalf("timestamp not a string: %v", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, stamp); err != nil {
		t.Errorf("timestamp %q is not ISO 8601: %v", stamp, err)
	}
}

// =============================================================================
// GROUPING TESTS
// =============================================================================

func TestGroupSessions(t *testing.T) {
	s := newTestStore(t)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mk := func(title string, updated time.Time) {
		id := s.CreateSession(DefaultPreferences())
		s.UpdateSessionTitle(id, title)
		s.mu.Lock()
		s.findLocked(id).LastUpdated = updated
		s.mu.Unlock()
	}

	mk("today", now.Add(-2*time.Hour))
	mk("this-week", now.AddDate(0, 0, -3))
	mk("this-month", now.AddDate(0, 0, -20))
	mk("older", now.AddDate(0, -3, 0))

	groups := s.GroupSessions(now)

	check := func(name string, got []*model.Session, want string) {
		t.Helper()
		if len(got) != 1 || got[0].Title != want {
			t.Errorf("%s = %+v, want single session %q", name, got, want)
		}
	}
	check("Today", groups.Today, "today")
	check("ThisWeek", groups.ThisWeek, "this-week")
	check("ThisMonth", groups.ThisMonth, "this-month")
	check("Older", groups.Older, "older")
}

// =============================================================================
// PREFERENCES TESTS
// =============================================================================

func TestPrefStore_DefaultsAndPersistence(t *testing.T) {
	dir := t.TempDir()

	p1 := NewPrefStore(dir, nil)
	if got := p1.Get(); got.Model != model.ModelQwen || got.DeepThinking || got.WebSearch {
		t.Errorf("defaults = %+v", got)
	}

	p1.SetModel(model.ModelDeepSeek)
	p1.SetDeepThinking(true)
	p1.SetWebSearch(true)

	p2 := NewPrefStore(dir, nil)
	got := p2.Get()
	if got.Model != model.ModelDeepSeek || !got.DeepThinking || !got.WebSearch {
		t.Errorf("reloaded prefs = %+v", got)
	}
}

func TestPrefStore_InvalidModelIgnored(t *testing.T) {
	p := NewPrefStore(t.TempDir(), nil)

	p.SetModel(model.ModelType("GPT9000"))

	if got := p.Get().Model; got != model.ModelQwen {
		t.Errorf("Model = %q, want unchanged default", got)
	}
}

func TestPrefStore_CorruptFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, preferencesFile), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewPrefStore(dir, nil)
	if got := p.Get(); got.Model != model.ModelQwen {
		t.Errorf("prefs = %+v, want defaults", got)
	}
}

func TestMergeRemoteAddsUnknownSessions(t *testing.T) {
	s := newTestStore(t)
	local := s.CreateSession(DefaultPreferences())

	updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	added := s.MergeRemote([]RemoteSession{
		{ID: local, Title: "should not clobber", Updated: updated},
		{ID: "remote-1", Title: "Kubernetes basics", Updated: updated},
		{ID: ""},
	})

	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	merged := s.Session("remote-1")
	if merged == nil {
		t.Fatal("remote session not merged")
	}
	if merged.Title != "Kubernetes basics" {
		t.Errorf("Title = %q", merged.Title)
	}
	if !merged.LastUpdated.Equal(updated) {
		t.Errorf("LastUpdated = %v", merged.LastUpdated)
	}
	if len(merged.Messages) != 0 {
		t.Error("merged shell should carry no messages")
	}

	// Local session untouched.
	if got := s.Session(local).Title; got == "should not clobber" {
		t.Error("merge overwrote a known session")
	}

	// Idempotent on repeat.
	if again := s.MergeRemote([]RemoteSession{{ID: "remote-1", Title: "x"}}); again != 0 {
		t.Errorf("repeat merge added %d", again)
	}
}

func TestMergeRemotePersists(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	s1.MergeRemote([]RemoteSession{{ID: "remote-2", Title: "Persisted"}})

	s2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Session("remote-2") == nil {
		t.Error("merged session lost across restart")
	}
}
