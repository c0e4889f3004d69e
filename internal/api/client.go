// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/deepchat/internal/protocol"
)

// Backend endpoint paths, relative to the base URL.
const (
	chatPath    = "/api/v1/chat/base_chat"
	createPath  = "/api/v1/chat/create_new_chat"
	historyPath = "/api/v1/chat/get_history_chats"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL of the deepchat backend (default: http://127.0.0.1:8000)
	BaseURL string

	// UserID sent with every request (default: "123")
	UserID string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8000",
		UserID:  "123",
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the deepchat backend. It issues the
// streaming chat request, drives the protocol decoder over the response
// body, and exposes the session-management endpoints.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new backend client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.UserID == "" {
		config.UserID = "123"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends a chat request and streams decoded events to the
// callbacks. It blocks until the stream ends.
//
// Cancelling ctx is not an error: further OnMessage/OnThinking callbacks
// stop, OnComplete still fires exactly once, and ChatStream returns nil.
// Transport failures (unreachable backend, non-2xx status) are returned as
// *ClientError and OnComplete does not fire.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, cb StreamCallbacks) error {
	if req.SessionID == "" {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "session id is required"}
	}

	// Bail out before any network work if already cancelled. Completion
	// bookkeeping must still run so loading state resets.
	if err := ctx.Err(); err != nil {
		completeOnce(&cb)
		return nil
	}

	httpReq, err := c.newChatRequest(ctx, req)
	if err != nil {
		return err
	}

	// Streaming uses a client without timeout; lifetime is bounded by ctx.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		if isContextErr(ctx, err) {
			completeOnce(&cb)
			return nil
		}
		return &ClientError{Type: ErrTypeConnection, Message: "chat request failed", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:    ErrTypeHTTPStatus,
			Message: "chat request failed: " + resp.Status,
		}
	}

	return c.readStream(ctx, resp.Body, cb)
}

// readStream drives the line decoder over the response body.
func (c *Client) readStream(ctx context.Context, body io.Reader, cb StreamCallbacks) error {
	dec := protocol.NewLineDecoder()
	buf := make([]byte, 4096)

	for {
		// Cooperative cancellation: checked once per chunk so a cancelled
		// stream stops rendering promptly without tearing the read down
		// mid-line.
		if ctx.Err() != nil {
			completeOnce(&cb)
			return nil
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if ev.Kind == protocol.EventDone {
					completeOnce(&cb)
					return nil
				}
				cb.dispatch(ev)
			}
		}
		if err != nil {
			if err == io.EOF {
				for _, ev := range dec.Flush() {
					if ev.Kind == protocol.EventDone {
						break
					}
					cb.dispatch(ev)
				}
				completeOnce(&cb)
				return nil
			}
			if isContextErr(ctx, err) {
				completeOnce(&cb)
				return nil
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
	}
}

// completeOnce invokes OnComplete and disarms it, so double completion
// (sentinel followed by EOF, or cancellation racing the final read) cannot
// fire the callback twice.
func completeOnce(cb *StreamCallbacks) {
	if cb.OnComplete != nil {
		fn := cb.OnComplete
		cb.OnComplete = nil
		fn()
	}
}

// isContextErr reports whether err was caused by ctx being cancelled or
// timing out.
func isContextErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// REQUEST ENCODING
// =============================================================================

// newChatRequest builds the HTTP request for a chat call. Attachments force
// multipart encoding; otherwise scalar fields go as a URL-encoded form.
func (c *Client) newChatRequest(ctx context.Context, req ChatRequest) (*http.Request, error) {
	history, err := json.Marshal(req.History)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to encode history", Cause: err}
	}
	if req.History == nil {
		history = []byte("[]")
	}

	endpoint := c.config.BaseURL + chatPath

	if !req.hasAttachments() {
		form := url.Values{}
		form.Set("user_id", c.config.UserID)
		form.Set("session_id", req.SessionID)
		form.Set("prompt", req.Prompt)
		form.Set("history", string(history))
		form.Set("enable_deep_thinking", strconv.FormatBool(req.DeepThinking))
		form.Set("web_search", strconv.FormatBool(req.WebSearch))
		if req.Regenerate != "" {
			form.Set("regenerate_mode", string(req.Regenerate))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return httpReq, nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"user_id":              c.config.UserID,
		"session_id":           req.SessionID,
		"prompt":               req.Prompt,
		"history":              string(history),
		"enable_deep_thinking": strconv.FormatBool(req.DeepThinking),
		"web_search":           strconv.FormatBool(req.WebSearch),
	}
	if req.Regenerate != "" {
		fields["regenerate_mode"] = string(req.Regenerate)
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to encode form field", Cause: err}
		}
	}

	for _, att := range req.Files {
		if err := writeAttachment(w, "files", att); err != nil {
			return nil, err
		}
	}
	for _, att := range req.ImageFiles {
		if err := writeAttachment(w, "image_files", att); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to finalize multipart body", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	return httpReq, nil
}

// writeAttachment adds one file part to the multipart body.
func writeAttachment(w *multipart.Writer, field string, att Attachment) error {
	part, err := w.CreateFormFile(field, att.Filename)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create file part", Cause: err}
	}
	if _, err := part.Write(att.Data); err != nil {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to write file part", Cause: err}
	}
	return nil
}

// drainAndClose consumes the remainder of a response body so the connection
// can be reused, then closes it.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
