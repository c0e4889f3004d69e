// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// SessionInfo describes one remote session as reported by the backend
// history endpoint.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"-"`
}

// sessionInfoWire is the tolerant wire form of SessionInfo. Backends differ
// on field names and timestamp formats, so everything optional is decoded
// loosely and normalized afterwards.
type sessionInfoWire struct {
	SessionID string `json:"session_id"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
	Timestamp string `json:"timestamp"`
}

func (w sessionInfoWire) normalize() SessionInfo {
	info := SessionInfo{SessionID: w.SessionID, Title: w.Title}
	if info.SessionID == "" {
		info.SessionID = w.ID
	}
	if info.Title == "" {
		info.Title = w.Name
	}
	raw := w.UpdatedAt
	if raw == "" {
		raw = w.Timestamp
	}
	info.UpdatedAt = parseLenientTime(raw)
	return info
}

// parseLenientTime accepts the timestamp formats observed in the wild.
// Unparseable input yields the zero time rather than an error.
func parseLenientTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CreateNewChat asks the backend to allocate a new session and returns its
// id. Deployed backends disagree on the method and encoding this endpoint
// expects, so the call walks through GET, POST form, and POST JSON until
// one succeeds.
func (c *Client) CreateNewChat(ctx context.Context) (string, error) {
	endpoint := c.config.BaseURL + createPath

	attempts := []func(context.Context, string) (*http.Request, error){
		c.createViaGet,
		c.createViaForm,
		c.createViaJSON,
	}

	var lastErr error
	for _, build := range attempts {
		httpReq, err := build(ctx, endpoint)
		if err != nil {
			return "", err
		}
		id, err := c.doCreate(httpReq)
		if err == nil {
			return id, nil
		}
		lastErr = err
		// Connection failures will not improve with a different encoding.
		if IsConnection(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) createViaGet(ctx context.Context, endpoint string) (*http.Request, error) {
	u := endpoint + "?user_id=" + url.QueryEscape(c.config.UserID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	return httpReq, nil
}

func (c *Client) createViaForm(ctx context.Context, endpoint string) (*http.Request, error) {
	form := url.Values{}
	form.Set("user_id", c.config.UserID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return httpReq, nil
}

func (c *Client) createViaJSON(ctx context.Context, endpoint string) (*http.Request, error) {
	payload, err := json.Marshal(map[string]string{"user_id": c.config.UserID})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to encode request", Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// doCreate executes one create attempt and extracts the session id.
func (c *Client) doCreate(httpReq *http.Request) (string, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "create session request failed", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ClientError{
			Type:    ErrTypeHTTPStatus,
			Message: "create session failed: " + resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to read create response", Cause: err}
	}

	id := extractSessionID(body)
	if id == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "create response has no session id"}
	}
	return id, nil
}

// extractSessionID pulls the session id out of a create response. The id
// may sit at the top level or under a data envelope, keyed session_id or id,
// or the response may be the bare id string.
func extractSessionID(body []byte) string {
	var envelope struct {
		SessionID string          `json:"session_id"`
		ID        string          `json:"id"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.SessionID != "" {
			return envelope.SessionID
		}
		if envelope.ID != "" {
			return envelope.ID
		}
		if len(envelope.Data) > 0 {
			var inner struct {
				SessionID string `json:"session_id"`
				ID        string `json:"id"`
			}
			if err := json.Unmarshal(envelope.Data, &inner); err == nil {
				if inner.SessionID != "" {
					return inner.SessionID
				}
				if inner.ID != "" {
					return inner.ID
				}
			}
			var bare string
			if err := json.Unmarshal(envelope.Data, &bare); err == nil {
				return bare
			}
		}
	}
	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}
	return ""
}

// GetHistoryChats fetches the list of sessions known to the backend for
// the configured user. Both a bare JSON array and a {"data": [...]}
// envelope are accepted.
func (c *Client) GetHistoryChats(ctx context.Context) ([]SessionInfo, error) {
	u := fmt.Sprintf("%s%s?user_id=%s", c.config.BaseURL, historyPath, url.QueryEscape(c.config.UserID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "history request failed", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ClientError{
			Type:    ErrTypeHTTPStatus,
			Message: "history request failed: " + resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to read history response", Cause: err}
	}

	var wire []sessionInfoWire
	if err := json.Unmarshal(body, &wire); err != nil {
		var envelope struct {
			Data []sessionInfoWire `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode history response", Cause: err}
		}
		wire = envelope.Data
	}

	infos := make([]SessionInfo, 0, len(wire))
	for _, w := range wire {
		info := w.normalize()
		if info.SessionID == "" {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}
