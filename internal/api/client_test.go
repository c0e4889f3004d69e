// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/deepchat/internal/protocol"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("BaseURL = %q, want 'http://127.0.0.1:8000'", config.BaseURL)
	}

	if config.UserID != "123" {
		t.Errorf("UserID = %q, want '123'", config.UserID)
	}

	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}
}

func TestNewClientWithConfig_FillsZeroValues(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://example.test"})

	if client.config.BaseURL != "http://example.test" {
		t.Errorf("BaseURL = %q", client.config.BaseURL)
	}

	if client.config.UserID != "123" {
		t.Errorf("UserID = %q, want default '123'", client.config.UserID)
	}

	if client.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", client.config.Timeout)
	}
}

func TestNewClientWithConfig_NilConfig(t *testing.T) {
	client := NewClientWithConfig(nil)

	if client.config.BaseURL == "" {
		t.Error("nil config should fall back to defaults")
	}
}

// =============================================================================
// CHAT STREAM TESTS
// =============================================================================

func streamServer(t *testing.T, lines []string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func TestChatStream_DeliversAnswerDeltas(t *testing.T) {
	server := streamServer(t, []string{
		`data: {"code":200,"type":"answer","answer":"Hello"}`,
		`data: {"code":200,"type":"answer","answer":", world"}`,
		`data: [DONE]`,
	}, nil)
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	var content strings.Builder
	completions := 0

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{
		OnMessage:  func(delta string) { content.WriteString(delta) },
		OnComplete: func() { completions++ },
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if content.String() != "Hello, world" {
		t.Errorf("content = %q, want 'Hello, world'", content.String())
	}

	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}

func TestChatStream_ThinkingAndWebSearch(t *testing.T) {
	server := streamServer(t, []string{
		`data: {"code":200,"type":"think","answer":"step 1"}`,
		`data: {"code":200,"type":"web_search","data":{"query":"go","pages":[{"title":"Go","url":"https://go.dev","content":"x"}],"pages_count":1}}`,
		`data: {"code":200,"type":"answer","answer":"done"}`,
		`data: [DONE]`,
	}, nil)
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	var thinking strings.Builder
	var search *protocol.WebSearchResult

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{
		OnThinking:  func(delta string) { thinking.WriteString(delta) },
		OnWebSearch: func(r *protocol.WebSearchResult) { search = r },
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if thinking.String() != "step 1" {
		t.Errorf("thinking = %q", thinking.String())
	}

	if search == nil {
		t.Fatal("OnWebSearch not called")
	}
	if search.Query != "go" || len(search.Pages) != 1 {
		t.Errorf("search = %+v", search)
	}
}

func TestChatStream_CompletesOnEOFWithoutSentinel(t *testing.T) {
	server := streamServer(t, []string{
		`data: {"code":200,"type":"answer","answer":"partial"}`,
	}, nil)
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	completions := 0
	got := ""

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{
		OnMessage:  func(delta string) { got += delta },
		OnComplete: func() { completions++ },
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if got != "partial" {
		t.Errorf("content = %q", got)
	}

	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}

func TestChatStream_SendsFormFields(t *testing.T) {
	var gotForm map[string]string

	server := streamServer(t, []string{`data: [DONE]`}, func(r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
			return
		}
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
	})
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL, UserID: "u7"})

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID:    "sess-1",
		Prompt:       "tell me",
		History:      []HistoryMessage{{Role: "user", Content: "earlier"}},
		DeepThinking: true,
		WebSearch:    false,
		Regenerate:   RegenerateReplace,
	}, StreamCallbacks{})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	want := map[string]string{
		"user_id":              "u7",
		"session_id":           "sess-1",
		"prompt":               "tell me",
		"history":              `[{"role":"user","content":"earlier"}]`,
		"enable_deep_thinking": "true",
		"web_search":           "false",
		"regenerate_mode":      "regenerate",
	}
	for key, value := range want {
		if gotForm[key] != value {
			t.Errorf("form[%q] = %q, want %q", key, gotForm[key], value)
		}
	}
}

func TestChatStream_EmptyHistoryEncodesAsArray(t *testing.T) {
	var history string

	server := streamServer(t, []string{`data: [DONE]`}, func(r *http.Request) {
		r.ParseForm()
		history = r.PostForm.Get("history")
	})
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if history != "[]" {
		t.Errorf("history = %q, want '[]'", history)
	}
}

func TestChatStream_AttachmentsUseMultipart(t *testing.T) {
	var contentType, filename, fileData, prompt string

	server := streamServer(t, []string{`data: [DONE]`}, func(r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		prompt = r.FormValue("prompt")
		file, header, err := r.FormFile("files")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		filename = header.Filename
		buf := make([]byte, header.Size)
		file.Read(buf)
		fileData = string(buf)
	})
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "summarize",
		Files:     []Attachment{{Filename: "notes.txt", Data: []byte("file body")}},
	}, StreamCallbacks{})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	if !strings.HasPrefix(contentType, "multipart/form-data") {
		t.Errorf("Content-Type = %q, want multipart", contentType)
	}
	if prompt != "summarize" {
		t.Errorf("prompt = %q", prompt)
	}
	if filename != "notes.txt" || fileData != "file body" {
		t.Errorf("file = %q %q", filename, fileData)
	}
}

func TestChatStream_MissingSessionID(t *testing.T) {
	client := NewClient()

	err := client.ChatStream(context.Background(), ChatRequest{Prompt: "hi"}, StreamCallbacks{})
	if err == nil {
		t.Fatal("expected error for missing session id")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidRequest {
		t.Errorf("error = %v, want invalid request", err)
	}
}

func TestChatStream_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	completions := 0
	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{OnComplete: func() { completions++ }})

	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeHTTPStatus {
		t.Errorf("error = %v, want HTTP status error", err)
	}

	if completions != 0 {
		t.Error("OnComplete must not fire on transport error")
	}
}

func TestChatStream_ConnectionRefused(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})

	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{})

	if !IsConnection(err) {
		t.Errorf("error = %v, want connection error", err)
	}
}

func TestChatStream_CancellationIsNotAnError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"code\":200,\"type\":\"answer\",\"answer\":\"A\"}\n")
		flusher.Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())

	completions := 0
	err := client.ChatStream(ctx, ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{
		OnMessage: func(delta string) {
			// Cancel after the first delta arrives.
			cancel()
		},
		OnComplete: func() { completions++ },
	})

	if err != nil {
		t.Fatalf("cancelled stream returned error: %v", err)
	}

	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}

func TestChatStream_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:1"})

	completions := 0
	err := client.ChatStream(ctx, ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{OnComplete: func() { completions++ }})

	if err != nil {
		t.Fatalf("pre-cancelled stream returned error: %v", err)
	}

	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}

func TestChatStream_NilCallbacks(t *testing.T) {
	server := streamServer(t, []string{
		`data: {"code":200,"type":"answer","answer":"x"}`,
		`data: [DONE]`,
	}, nil)
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	// All-nil callbacks must not panic.
	err := client.ChatStream(context.Background(), ChatRequest{
		SessionID: "s1",
		Prompt:    "hi",
	}, StreamCallbacks{})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}
}
