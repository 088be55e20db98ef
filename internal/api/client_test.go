// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bederf/aimthelaw-sub002/internal/model"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:        url,
		Model:          "test-model",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     1,
	})
}

// =============================================================================
// QUICK ACTION TESTS
// =============================================================================

func TestRunQuickAction_FailsFastWithoutDocuments(t *testing.T) {
	// Must not hit the network at all.
	c := newTestClient("http://127.0.0.1:0")

	_, err := c.RunQuickAction(context.Background(), model.ActionSummarize, ActionRequest{
		ClientID: "c1",
	})
	require.ErrorIs(t, err, ErrNoDocuments)
}

func TestRunQuickAction_PostsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"content": "ok"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.RunQuickAction(context.Background(), model.ActionExtractDates, ActionRequest{
		ClientID:  "c1",
		Documents: []string{"d1", "d2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/extract-dates", gotPath)
	assert.Equal(t, "c1", gotBody["client_id"])
	assert.Equal(t, "test-model", gotBody["model"], "client default model should be filled in")
	assert.Equal(t, "ok", result["content"])
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"unauthorized", 401, "", KindAuthentication},
		{"forbidden", 403, "", KindAuthentication},
		{"rate limited", 429, "", KindRateLimit},
		{"payload too large", 413, "", KindTokenLimit},
		{"token limit in message", 400, `{"error":"token limit exceeded"}`, KindTokenLimit},
		{"content filter", 400, `{"message":"blocked by content policy"}`, KindContentFilter},
		{"validation", 422, `{"detail":"field required"}`, KindValidation},
		{"server error", 500, "", KindServer},
		{"generic 4xx", 404, `{"error":"nope"}`, KindAPIResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ClassifyStatus(tc.status, []byte(tc.body))
			assert.Equal(t, tc.kind, err.Kind)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestClassifyStatus_TokenLimitGuidance(t *testing.T) {
	err := ClassifyStatus(413, nil)
	assert.Contains(t, err.UserMessage(), "fewer or smaller documents")
}

func TestClassifyTransport_TimeoutIsDistinct(t *testing.T) {
	err := ClassifyTransport(context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Contains(t, err.Message, "may still be processing")
}

func TestClassifyTransport_Network(t *testing.T) {
	err := ClassifyTransport(errors.New("dial tcp: connection refused"))
	assert.Equal(t, KindNetwork, err.Kind)
	assert.True(t, err.IsRetryable())
}

func TestErrorRetryability(t *testing.T) {
	assert.True(t, (&Error{Kind: KindServer}).IsRetryable())
	assert.True(t, (&Error{Kind: KindRateLimit}).IsRetryable())
	assert.False(t, (&Error{Kind: KindValidation}).IsRetryable())
	assert.False(t, (&Error{Kind: KindAuthentication}).IsRetryable())
	assert.False(t, (&Error{Kind: KindTimeout}).IsRetryable())
}

func TestDoJSON_DoesNotRetry4xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 3, RequestTimeout: time.Second})
	_, err := c.RunQuickAction(context.Background(), model.ActionSummarize, ActionRequest{
		ClientID: "c1", Documents: []string{"d1"},
	})

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, 1, calls, "4xx must not be retried")
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"content": "recovered"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 3, RequestTimeout: time.Second})
	result, err := c.RunQuickAction(context.Background(), model.ActionSummarize, ActionRequest{
		ClientID: "c1", Documents: []string{"d1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result["content"])
	assert.Equal(t, 2, calls)
}

// =============================================================================
// CONVERSATION ENDPOINT TESTS
// =============================================================================

func TestGetConversation_NotFoundIsAValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, found, err := c.GetConversation(context.Background(), "missing")
	require.NoError(t, err, "not-found must not be an error")
	assert.False(t, found)
}

func TestUpsertMessage_ConflictBecomesErrDuplicateID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "duplicate key value"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	msg := model.NewUserMessage("hi")
	msg.ConversationID = "conv1"
	err := c.UpsertMessage(context.Background(), msg)
	require.ErrorIs(t, err, ErrDuplicateID)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestStreamQuery_DeliversChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/streaming/query", r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "c1", body["client_id"])

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"content\":\"Hel\",\"done\":false}\n\n"))
		w.Write([]byte("data: {\"content\":\"lo\",\"done\":true}\n\n"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var content string
	var sawDone bool
	for chunk := range c.StreamQuery(context.Background(), QueryRequest{
		Query:    "hello",
		ClientID: "c1",
		UseRAG:   true,
	}) {
		content += chunk.Content
		sawDone = sawDone || chunk.Done
		assert.Empty(t, chunk.Error)
	}
	assert.Equal(t, "Hello", content)
	assert.True(t, sawDone)
}

func TestStreamQuery_HTTPErrorBecomesTerminalChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var chunks int
	var last string
	for chunk := range c.StreamQuery(context.Background(), QueryRequest{Query: "q", ClientID: "c1"}) {
		chunks++
		last = chunk.Error
	}
	assert.Equal(t, 1, chunks, "exactly one terminal error chunk")
	assert.NotEmpty(t, last)
}

func TestStreamQuery_ConnectionFailureBecomesTerminalChunk(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	var chunks int
	var sawError bool
	for chunk := range c.StreamQuery(context.Background(), QueryRequest{Query: "q", ClientID: "c1"}) {
		chunks++
		sawError = sawError || chunk.Error != ""
	}
	assert.Equal(t, 1, chunks)
	assert.True(t, sawError)
}

// =============================================================================
// BACKOFF TESTS
// =============================================================================

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, retryBaseDelay, calculateBackoff(1))
	assert.Equal(t, 2*retryBaseDelay, calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, calculateBackoff(20), "backoff must be capped")
}
